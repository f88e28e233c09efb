package shipping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/utils"
)

var presetSortColumns = map[string]string{
	"id":              "id",
	"name":            "name",
	"measurementUnit": "measurement_unit",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

var defaultPresetSort = utils.SortParams{Column: "name"}

func applyPresetFilter(query *gorm.DB, filter PresetFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where(utils.ILike("name"), utils.ContainsPattern(filter.Search))
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.MeasurementUnit != "" {
		query = query.Where("measurement_unit = ?", filter.MeasurementUnit)
	}
	return query
}

// ensureUniqueName probes for a preset with the same name (case-insensitive)
// so a duplicate is refused before anything is written.
func ensureUniqueName(tx *gorm.DB, model any, resource, name string, exceptID uint) error {
	exists, err := database.Exists(tx, model, "LOWER(name) = LOWER(?) AND id <> ?", name, exceptID)
	if err != nil {
		return fmt.Errorf("failed to check %s name: %w", resource, err)
	}
	if exists {
		return apperr.Conflict("%s named %q already exists", resource, name).WithMeta("field", "name")
	}
	return nil
}

func requirePositive(field string, v *decimal.Decimal) error {
	if v == nil || !v.IsPositive() {
		return apperr.InvalidInput("%s must be greater than zero", field).WithMeta("field", field)
	}
	return nil
}

func deleteByID(ctx context.Context, db *gorm.DB, model any, resource string, id uint) error {
	result := db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s %d: %w", resource, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("%s with id %d not found", resource, id)
	}
	return nil
}

type DimensionPresetService struct {
	db *gorm.DB
}

func NewDimensionPresetService(db *gorm.DB) *DimensionPresetService {
	return &DimensionPresetService{db: db}
}

func (s *DimensionPresetService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, presetSortColumns, defaultPresetSort)
}

func (s *DimensionPresetService) List(ctx context.Context, filter PresetFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[DimensionPreset], error) {
	query := applyPresetFilter(s.db.WithContext(ctx).Model(&DimensionPreset{}), filter)
	return utils.Paginate[DimensionPreset](query, page, sort)
}

func (s *DimensionPresetService) Get(ctx context.Context, id uint) (*DimensionPreset, error) {
	var preset DimensionPreset
	if err := s.db.WithContext(ctx).First(&preset, id).Error; err != nil {
		return nil, apperr.FromDB(err, "dimension preset", id, "load")
	}
	return &preset, nil
}

func (s *DimensionPresetService) Create(ctx context.Context, req *CreateDimensionPresetRequest) (*DimensionPreset, error) {
	for field, v := range map[string]*decimal.Decimal{"length": req.Length, "width": req.Width, "height": req.Height} {
		if err := requirePositive(field, v); err != nil {
			return nil, err
		}
	}
	preset := &DimensionPreset{
		Name:            req.Name,
		Length:          *req.Length,
		Width:           *req.Width,
		Height:          *req.Height,
		MeasurementUnit: req.MeasurementUnit,
		IsActive:        true,
	}
	if req.IsActive != nil {
		preset.IsActive = *req.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueName(tx, &DimensionPreset{}, "dimension preset", req.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(preset).Error; err != nil {
			return apperr.FromDB(err, "dimension preset", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "dimension preset created", "id", preset.ID, "name", preset.Name)
	return preset, nil
}

func (s *DimensionPresetService) Update(ctx context.Context, id uint, req *UpdateDimensionPresetRequest) (*DimensionPreset, error) {
	var preset DimensionPreset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&preset, id).Error; err != nil {
			return apperr.FromDB(err, "dimension preset", id, "load")
		}
		updates := map[string]any{}
		if req.Name != nil && *req.Name != preset.Name {
			if err := ensureUniqueName(tx, &DimensionPreset{}, "dimension preset", *req.Name, id); err != nil {
				return err
			}
			updates["name"] = *req.Name
		}
		for column, v := range map[string]*decimal.Decimal{"length": req.Length, "width": req.Width, "height": req.Height} {
			if v == nil {
				continue
			}
			if err := requirePositive(column, v); err != nil {
				return err
			}
			updates[column] = *v
		}
		if req.MeasurementUnit != nil {
			updates["measurement_unit"] = *req.MeasurementUnit
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&preset).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "dimension preset", id, "update")
		}
		return tx.First(&preset, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

func (s *DimensionPresetService) Delete(ctx context.Context, id uint) error {
	return deleteByID(ctx, s.db, &DimensionPreset{}, "dimension preset", id)
}

type WeightPresetService struct {
	db *gorm.DB
}

func NewWeightPresetService(db *gorm.DB) *WeightPresetService {
	return &WeightPresetService{db: db}
}

func (s *WeightPresetService) SortParams(sortBy, sortOrder string) utils.SortParams {
	allowed := map[string]string{"weight": "weight"}
	for k, v := range presetSortColumns {
		allowed[k] = v
	}
	return utils.GetSortParams(sortBy, sortOrder, allowed, defaultPresetSort)
}

func (s *WeightPresetService) List(ctx context.Context, filter PresetFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[WeightPreset], error) {
	query := applyPresetFilter(s.db.WithContext(ctx).Model(&WeightPreset{}), filter)
	return utils.Paginate[WeightPreset](query, page, sort)
}

func (s *WeightPresetService) Get(ctx context.Context, id uint) (*WeightPreset, error) {
	var preset WeightPreset
	if err := s.db.WithContext(ctx).First(&preset, id).Error; err != nil {
		return nil, apperr.FromDB(err, "weight preset", id, "load")
	}
	return &preset, nil
}

// Create stores a weight preset. New presets are active unless the request says otherwise.
func (s *WeightPresetService) Create(ctx context.Context, req *CreateWeightPresetRequest) (*WeightPreset, error) {
	if err := requirePositive("weight", req.Weight); err != nil {
		return nil, err
	}
	preset := &WeightPreset{
		Name:            req.Name,
		Weight:          *req.Weight,
		MeasurementUnit: req.MeasurementUnit,
		IsActive:        true,
	}
	if req.IsActive != nil {
		preset.IsActive = *req.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueName(tx, &WeightPreset{}, "weight preset", req.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(preset).Error; err != nil {
			return apperr.FromDB(err, "weight preset", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "weight preset created", "id", preset.ID, "name", preset.Name)
	return preset, nil
}

func (s *WeightPresetService) Update(ctx context.Context, id uint, req *UpdateWeightPresetRequest) (*WeightPreset, error) {
	var preset WeightPreset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&preset, id).Error; err != nil {
			return apperr.FromDB(err, "weight preset", id, "load")
		}
		updates := map[string]any{}
		if req.Name != nil && *req.Name != preset.Name {
			if err := ensureUniqueName(tx, &WeightPreset{}, "weight preset", *req.Name, id); err != nil {
				return err
			}
			updates["name"] = *req.Name
		}
		if req.Weight != nil {
			if err := requirePositive("weight", req.Weight); err != nil {
				return err
			}
			updates["weight"] = *req.Weight
		}
		if req.MeasurementUnit != nil {
			updates["measurement_unit"] = *req.MeasurementUnit
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&preset).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "weight preset", id, "update")
		}
		return tx.First(&preset, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

func (s *WeightPresetService) Delete(ctx context.Context, id uint) error {
	return deleteByID(ctx, s.db, &WeightPreset{}, "weight preset", id)
}

var specItemSortColumns = map[string]string{
	"id":            "id",
	"packageSpecId": "package_spec_id",
	"itemId":        "item_id",
	"quantity":      "quantity",
	"createdAt":     "created_at",
}

type PackageSpecItemService struct {
	db *gorm.DB
}

func NewPackageSpecItemService(db *gorm.DB) *PackageSpecItemService {
	return &PackageSpecItemService{db: db}
}

func (s *PackageSpecItemService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, specItemSortColumns, utils.SortParams{Column: "id"})
}

func (s *PackageSpecItemService) List(ctx context.Context, filter PackageSpecItemFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[PackageSpecItem], error) {
	query := s.db.WithContext(ctx).Model(&PackageSpecItem{})
	if filter.PackageSpecID != 0 {
		query = query.Where("package_spec_id = ?", filter.PackageSpecID)
	}
	if filter.ItemID != 0 {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	return utils.Paginate[PackageSpecItem](query, page, sort)
}

func (s *PackageSpecItemService) Get(ctx context.Context, id uint) (*PackageSpecItem, error) {
	var item PackageSpecItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, apperr.FromDB(err, "package spec item", id, "load")
	}
	return &item, nil
}

func (s *PackageSpecItemService) Create(ctx context.Context, req *CreatePackageSpecItemRequest) (*PackageSpecItem, error) {
	item := &PackageSpecItem{
		PackageSpecID:     req.PackageSpecID,
		ProductionOrderID: req.ProductionOrderID,
		ItemID:            req.ItemID,
		Quantity:          req.Quantity,
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, apperr.FromDB(err, "package spec item", 0, "create")
	}
	return item, nil
}

func (s *PackageSpecItemService) Update(ctx context.Context, id uint, req *UpdatePackageSpecItemRequest) (*PackageSpecItem, error) {
	var item PackageSpecItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return apperr.FromDB(err, "package spec item", id, "load")
		}
		updates := map[string]any{}
		if req.PackageSpecID != nil {
			updates["package_spec_id"] = *req.PackageSpecID
		}
		if req.ItemID != nil {
			updates["item_id"] = *req.ItemID
		}
		if req.Quantity != nil {
			updates["quantity"] = *req.Quantity
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "package spec item", id, "update")
		}
		return tx.First(&item, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *PackageSpecItemService) Delete(ctx context.Context, id uint) error {
	return deleteByID(ctx, s.db, &PackageSpecItem{}, "package spec item", id)
}
