package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/utils"
)

var packagingSortColumns = map[string]string{
	"id":              "id",
	"name":            "name",
	"unitsPerPackage": "units_per_package",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

var yarnSortColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"colorCode": "color_code",
	"supplier":  "supplier",
	"createdAt": "created_at",
}

type PackagingService struct {
	db *gorm.DB
}

func NewPackagingService(db *gorm.DB) *PackagingService {
	return &PackagingService{db: db}
}

func (s *PackagingService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, packagingSortColumns, utils.SortParams{Column: "name"})
}

func (s *PackagingService) List(ctx context.Context, filter PackagingFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[Packaging], error) {
	query := s.db.WithContext(ctx).Model(&Packaging{})
	if filter.Search != "" {
		query = query.Where(utils.ILike("name"), utils.ContainsPattern(filter.Search))
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return utils.Paginate[Packaging](query, page, sort)
}

func (s *PackagingService) Get(ctx context.Context, id uint) (*Packaging, error) {
	var packaging Packaging
	if err := s.db.WithContext(ctx).First(&packaging, id).Error; err != nil {
		return nil, apperr.FromDB(err, "packaging", id, "load")
	}
	return &packaging, nil
}

func (s *PackagingService) Create(ctx context.Context, req *CreatePackagingRequest) (*Packaging, error) {
	packaging := &Packaging{
		Name:            req.Name,
		Description:     req.Description,
		UnitsPerPackage: req.UnitsPerPackage,
		IsActive:        true,
	}
	if req.IsActive != nil {
		packaging.IsActive = *req.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUniqueName(tx, req.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(packaging).Error; err != nil {
			return apperr.FromDB(err, "packaging", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "packaging created", "id", packaging.ID, "name", packaging.Name)
	return packaging, nil
}

func (s *PackagingService) Update(ctx context.Context, id uint, req *UpdatePackagingRequest) (*Packaging, error) {
	var packaging Packaging
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&packaging, id).Error; err != nil {
			return apperr.FromDB(err, "packaging", id, "load")
		}
		updates := map[string]any{}
		if req.Name != nil && *req.Name != packaging.Name {
			if err := s.ensureUniqueName(tx, *req.Name, id); err != nil {
				return err
			}
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.UnitsPerPackage != nil {
			updates["units_per_package"] = *req.UnitsPerPackage
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&packaging).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "packaging", id, "update")
		}
		return tx.First(&packaging, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &packaging, nil
}

func (s *PackagingService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Packaging{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete packaging %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("packaging with id %d not found", id)
	}
	return nil
}

// Lookup loads the packaging rows with the given ids in one query.
func (s *PackagingService) Lookup(ctx context.Context, ids []uint) (map[uint]*Packaging, error) {
	out := make(map[uint]*Packaging, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Packaging
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load packaging: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (s *PackagingService) ensureUniqueName(tx *gorm.DB, name string, exceptID uint) error {
	exists, err := database.Exists(tx, &Packaging{}, "LOWER(name) = LOWER(?) AND id <> ?", name, exceptID)
	if err != nil {
		return fmt.Errorf("failed to check packaging name: %w", err)
	}
	if exists {
		return apperr.Conflict("packaging named %q already exists", name).WithMeta("field", "name")
	}
	return nil
}

type YarnService struct {
	db *gorm.DB
}

func NewYarnService(db *gorm.DB) *YarnService {
	return &YarnService{db: db}
}

func (s *YarnService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, yarnSortColumns, utils.SortParams{Column: "name"})
}

func (s *YarnService) List(ctx context.Context, search string, page utils.PageParams, sort utils.SortParams) (utils.Page[Yarn], error) {
	query := s.db.WithContext(ctx).Model(&Yarn{})
	if search != "" {
		pattern := utils.ContainsPattern(search)
		query = query.Where(utils.ILike("name")+" OR "+utils.ILike("color_code"), pattern, pattern)
	}
	return utils.Paginate[Yarn](query, page, sort)
}

func (s *YarnService) Get(ctx context.Context, id uint) (*Yarn, error) {
	var yarn Yarn
	if err := s.db.WithContext(ctx).First(&yarn, id).Error; err != nil {
		return nil, apperr.FromDB(err, "yarn", id, "load")
	}
	return &yarn, nil
}

// Lookup loads the yarns with the given ids in one query.
func (s *YarnService) Lookup(ctx context.Context, ids []uint) (map[uint]*Yarn, error) {
	out := make(map[uint]*Yarn, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Yarn
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load yarns: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}
