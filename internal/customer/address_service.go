package customer

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/utils"
)

var addressSortColumns = map[string]string{
	"id":          "id",
	"city":        "city",
	"country":     "country",
	"addressType": "address_type",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

var defaultAddressSort = utils.SortParams{Column: "created_at", Desc: true}

type AddressService struct {
	db *gorm.DB
}

func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// SortParams resolves the caller's sortBy/sortOrder against the address columns.
func (s *AddressService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, addressSortColumns, defaultAddressSort)
}

func (s *AddressService) List(ctx context.Context, filter AddressFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[Address], error) {
	query := s.db.WithContext(ctx).Model(&Address{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.AddressType != "" {
		query = query.Where("address_type = ?", filter.AddressType)
	}
	return utils.Paginate[Address](query, page, sort)
}

func (s *AddressService) Get(ctx context.Context, id uint) (*Address, error) {
	var address Address
	if err := s.db.WithContext(ctx).First(&address, id).Error; err != nil {
		return nil, apperr.FromDB(err, "customer address", id, "load")
	}
	return &address, nil
}

// Create stores a new address. A primary address demotes the customer's other
// primary address of the same type.
func (s *AddressService) Create(ctx context.Context, req *CreateAddressRequest) (*Address, error) {
	address := &Address{
		CustomerID:   req.CustomerID,
		AddressType:  req.AddressType,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		IsPrimary:    req.IsPrimary,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, req.CustomerID); err != nil {
			return err
		}
		if address.IsPrimary {
			if err := clearPrimary(tx, address.CustomerID, address.AddressType, 0); err != nil {
				return err
			}
		}
		if err := tx.Create(address).Error; err != nil {
			return apperr.FromDB(err, "customer address", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "customer address created", "id", address.ID, "customer_id", address.CustomerID)
	return address, nil
}

func (s *AddressService) Update(ctx context.Context, id uint, req *UpdateAddressRequest) (*Address, error) {
	var address Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&address, id).Error; err != nil {
			return apperr.FromDB(err, "customer address", id, "load")
		}

		updates := map[string]any{}
		if req.AddressType != nil {
			updates["address_type"] = *req.AddressType
		}
		if req.AddressLine1 != nil {
			updates["address_line1"] = *req.AddressLine1
		}
		if req.AddressLine2 != nil {
			updates["address_line2"] = *req.AddressLine2
		}
		if req.City != nil {
			updates["city"] = *req.City
		}
		if req.State != nil {
			updates["state"] = *req.State
		}
		if req.PostalCode != nil {
			updates["postal_code"] = *req.PostalCode
		}
		if req.Country != nil {
			updates["country"] = *req.Country
		}
		if req.IsPrimary != nil {
			updates["is_primary"] = *req.IsPrimary
		}
		if len(updates) == 0 {
			return nil
		}

		addressType := address.AddressType
		if req.AddressType != nil {
			addressType = *req.AddressType
		}
		primary := address.IsPrimary
		if req.IsPrimary != nil {
			primary = *req.IsPrimary
		}
		if primary {
			if err := clearPrimary(tx, address.CustomerID, addressType, address.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(&address).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "customer address", id, "update")
		}
		return tx.First(&address, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (s *AddressService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Address{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete customer address %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("customer address with id %d not found", id)
	}
	return nil
}

func clearPrimary(tx *gorm.DB, customerID uint, addressType AddressType, exceptID uint) error {
	query := tx.Model(&Address{}).
		Where("customer_id = ? AND address_type = ? AND is_primary = ?", customerID, addressType, true)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Update("is_primary", false).Error; err != nil {
		return fmt.Errorf("failed to clear primary address: %w", err)
	}
	return nil
}

// ensureCustomer rejects references to customers that do not exist.
func ensureCustomer(tx *gorm.DB, customerID uint) error {
	var count int64
	if err := tx.Model(&Customer{}).Where("id = ?", customerID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up customer %d: %w", customerID, err)
	}
	if count == 0 {
		return apperr.InvalidInput("customer %d does not exist", customerID).WithMeta("field", "customer_id")
	}
	return nil
}

// CustomerExists fails with an invalid-input error unless the customer row exists.
func CustomerExists(ctx context.Context, db *gorm.DB, customerID uint) error {
	return ensureCustomer(db.WithContext(ctx), customerID)
}
