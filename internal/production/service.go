package production

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/catalog"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/utils"
)

var lineSortColumns = map[string]string{
	"id":                "id",
	"productionOrderId": "production_order_id",
	"itemId":            "item_id",
	"createdAt":         "created_at",
	"updatedAt":         "updated_at",
}

// Line items read in the order they were entered.
var defaultLineSort = utils.SortParams{Column: "id"}

func lineSort(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, lineSortColumns, defaultLineSort)
}

func applyLineFilter(query *gorm.DB, filter LineFilter) *gorm.DB {
	if filter.ProductionOrderID != 0 {
		query = query.Where("production_order_id = ?", filter.ProductionOrderID)
	}
	if filter.ItemID != 0 {
		query = query.Where("item_id = ?", filter.ItemID)
	}
	return query
}

func ensureYarn(tx *gorm.DB, id uint) error {
	exists, err := database.Exists(tx, &catalog.Yarn{}, "id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to check yarn %d: %w", id, err)
	}
	if !exists {
		return apperr.InvalidInput("yarn %d does not exist", id).WithMeta("field", "yarn_id")
	}
	return nil
}

func ensurePackaging(tx *gorm.DB, id uint) error {
	exists, err := database.Exists(tx, &catalog.Packaging{}, "id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to check packaging %d: %w", id, err)
	}
	if !exists {
		return apperr.InvalidInput("packaging %d does not exist", id).WithMeta("field", "packaging_id")
	}
	return nil
}

func deleteLine(ctx context.Context, db *gorm.DB, model any, resource string, id uint) error {
	result := db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete %s %d: %w", resource, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("%s with id %d not found", resource, id)
	}
	return nil
}

// BodyColorService manages production_orders_body_colors and attaches the yarn
// each row points at.
type BodyColorService struct {
	db    *gorm.DB
	yarns *catalog.YarnService
}

func NewBodyColorService(db *gorm.DB, yarns *catalog.YarnService) *BodyColorService {
	return &BodyColorService{db: db, yarns: yarns}
}

func (s *BodyColorService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return lineSort(sortBy, sortOrder)
}

func (s *BodyColorService) List(ctx context.Context, filter LineFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[BodyColor], error) {
	query := applyLineFilter(s.db.WithContext(ctx).Model(&BodyColor{}), filter)
	result, err := utils.Paginate[BodyColor](query, page, sort)
	if err != nil {
		return result, err
	}
	return result, s.attachYarns(ctx, result.Items)
}

func (s *BodyColorService) Get(ctx context.Context, id uint) (*BodyColor, error) {
	var row BodyColor
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, apperr.FromDB(err, "body color", id, "load")
	}
	rows := []BodyColor{row}
	if err := s.attachYarns(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *BodyColorService) Create(ctx context.Context, req *CreateBodyColorRequest) (*BodyColor, error) {
	row := &BodyColor{
		ProductionOrderID: req.ProductionOrderID,
		ItemID:            req.ItemID,
		BodyColor:         req.BodyColor,
		YarnID:            req.YarnID,
		Notes:             req.Notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.YarnID != nil {
			if err := ensureYarn(tx, *row.YarnID); err != nil {
				return err
			}
		}
		if err := tx.Create(row).Error; err != nil {
			return apperr.FromDB(err, "body color", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "body color created", "id", row.ID, "production_order_id", row.ProductionOrderID, "item_id", row.ItemID)
	return s.Get(ctx, row.ID)
}

func (s *BodyColorService) Update(ctx context.Context, id uint, req *UpdateBodyColorRequest) (*BodyColor, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row BodyColor
		if err := tx.First(&row, id).Error; err != nil {
			return apperr.FromDB(err, "body color", id, "load")
		}
		updates := map[string]any{}
		if req.BodyColor != nil {
			updates["body_color"] = *req.BodyColor
		}
		if req.YarnID != nil {
			if err := ensureYarn(tx, *req.YarnID); err != nil {
				return err
			}
			updates["yarn_id"] = *req.YarnID
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "body color", id, "update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *BodyColorService) Delete(ctx context.Context, id uint) error {
	return deleteLine(ctx, s.db, &BodyColor{}, "body color", id)
}

func (s *BodyColorService) attachYarns(ctx context.Context, rows []BodyColor) error {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		if row.YarnID != nil {
			ids = append(ids, *row.YarnID)
		}
	}
	yarns, err := s.yarns.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].YarnID == nil {
			continue
		}
		if yarn, ok := yarns[*rows[i].YarnID]; ok {
			rows[i].Yarn = yarn.Summary()
		}
	}
	return nil
}

type KnitColorService struct {
	db    *gorm.DB
	yarns *catalog.YarnService
}

func NewKnitColorService(db *gorm.DB, yarns *catalog.YarnService) *KnitColorService {
	return &KnitColorService{db: db, yarns: yarns}
}

func (s *KnitColorService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return lineSort(sortBy, sortOrder)
}

func (s *KnitColorService) List(ctx context.Context, filter LineFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[KnitColor], error) {
	query := applyLineFilter(s.db.WithContext(ctx).Model(&KnitColor{}), filter)
	result, err := utils.Paginate[KnitColor](query, page, sort)
	if err != nil {
		return result, err
	}
	return result, s.attachYarns(ctx, result.Items)
}

func (s *KnitColorService) Get(ctx context.Context, id uint) (*KnitColor, error) {
	var row KnitColor
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, apperr.FromDB(err, "knit color", id, "load")
	}
	rows := []KnitColor{row}
	if err := s.attachYarns(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *KnitColorService) Create(ctx context.Context, req *CreateKnitColorRequest) (*KnitColor, error) {
	row := &KnitColor{
		ProductionOrderID: req.ProductionOrderID,
		ItemID:            req.ItemID,
		YarnID:            req.YarnID,
		Color:             req.Color,
		Quantity:          req.Quantity,
		Notes:             req.Notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureYarn(tx, row.YarnID); err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return apperr.FromDB(err, "knit color", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "knit color created", "id", row.ID, "production_order_id", row.ProductionOrderID, "item_id", row.ItemID)
	return s.Get(ctx, row.ID)
}

func (s *KnitColorService) Update(ctx context.Context, id uint, req *UpdateKnitColorRequest) (*KnitColor, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row KnitColor
		if err := tx.First(&row, id).Error; err != nil {
			return apperr.FromDB(err, "knit color", id, "load")
		}
		updates := map[string]any{}
		if req.YarnID != nil {
			if err := ensureYarn(tx, *req.YarnID); err != nil {
				return err
			}
			updates["yarn_id"] = *req.YarnID
		}
		if req.Color != nil {
			updates["color"] = *req.Color
		}
		if req.Quantity != nil {
			updates["quantity"] = *req.Quantity
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "knit color", id, "update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *KnitColorService) Delete(ctx context.Context, id uint) error {
	return deleteLine(ctx, s.db, &KnitColor{}, "knit color", id)
}

func (s *KnitColorService) attachYarns(ctx context.Context, rows []KnitColor) error {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.YarnID)
	}
	yarns, err := s.yarns.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if yarn, ok := yarns[rows[i].YarnID]; ok {
			rows[i].Yarn = yarn.Summary()
		}
	}
	return nil
}

type PackagingService struct {
	db        *gorm.DB
	packaging *catalog.PackagingService
}

func NewPackagingService(db *gorm.DB, packaging *catalog.PackagingService) *PackagingService {
	return &PackagingService{db: db, packaging: packaging}
}

func (s *PackagingService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return lineSort(sortBy, sortOrder)
}

func (s *PackagingService) List(ctx context.Context, filter LineFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[Packaging], error) {
	query := applyLineFilter(s.db.WithContext(ctx).Model(&Packaging{}), filter)
	result, err := utils.Paginate[Packaging](query, page, sort)
	if err != nil {
		return result, err
	}
	return result, s.attachPackaging(ctx, result.Items)
}

func (s *PackagingService) Get(ctx context.Context, id uint) (*Packaging, error) {
	var row Packaging
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, apperr.FromDB(err, "production packaging", id, "load")
	}
	rows := []Packaging{row}
	if err := s.attachPackaging(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *PackagingService) Create(ctx context.Context, req *CreatePackagingRequest) (*Packaging, error) {
	row := &Packaging{
		ProductionOrderID: req.ProductionOrderID,
		ItemID:            req.ItemID,
		PackagingID:       req.PackagingID,
		Quantity:          req.Quantity,
		Notes:             req.Notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePackaging(tx, row.PackagingID); err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return apperr.FromDB(err, "production packaging", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "production packaging created", "id", row.ID, "production_order_id", row.ProductionOrderID, "item_id", row.ItemID)
	return s.Get(ctx, row.ID)
}

func (s *PackagingService) Update(ctx context.Context, id uint, req *UpdatePackagingRequest) (*Packaging, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Packaging
		if err := tx.First(&row, id).Error; err != nil {
			return apperr.FromDB(err, "production packaging", id, "load")
		}
		updates := map[string]any{}
		if req.PackagingID != nil {
			if err := ensurePackaging(tx, *req.PackagingID); err != nil {
				return err
			}
			updates["packaging_id"] = *req.PackagingID
		}
		if req.Quantity != nil {
			updates["quantity"] = *req.Quantity
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "production packaging", id, "update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *PackagingService) Delete(ctx context.Context, id uint) error {
	return deleteLine(ctx, s.db, &Packaging{}, "production packaging", id)
}

func (s *PackagingService) attachPackaging(ctx context.Context, rows []Packaging) error {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PackagingID)
	}
	packaging, err := s.packaging.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if p, ok := packaging[rows[i].PackagingID]; ok {
			rows[i].Packaging = p.Summary()
		}
	}
	return nil
}
