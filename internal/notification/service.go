package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/utils"
)

var sortColumns = map[string]string{
	"id":        "id",
	"email":     "email",
	"name":      "name",
	"status":    "status",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, sortColumns, utils.SortParams{Column: "created_at", Desc: true})
}

func (s *Service) List(ctx context.Context, filter Filter, page utils.PageParams, sort utils.SortParams) (utils.Page[EmailNotification], error) {
	query := s.db.WithContext(ctx).Model(&EmailNotification{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := utils.ContainsPattern(filter.Search)
		query = query.Where(utils.ILike("name")+" OR "+utils.ILike("email"), pattern, pattern)
	}
	return utils.Paginate[EmailNotification](query, page, sort)
}

func (s *Service) Get(ctx context.Context, id uint) (*EmailNotification, error) {
	var n EmailNotification
	if err := s.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, apperr.FromDB(err, "email notification", id, "load")
	}
	return &n, nil
}

// Create stores a recipient. The address is normalised to lower case and must
// not already be registered.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*EmailNotification, error) {
	n := &EmailNotification{
		Email:    normaliseEmail(req.Email),
		Name:     req.Name,
		Status:   req.Status,
		Category: req.Category,
	}
	if n.Status == "" {
		n.Status = StatusActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueEmail(tx, n.Email, 0); err != nil {
			return err
		}
		if err := tx.Create(n).Error; err != nil {
			return apperr.FromDB(err, "email notification", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "email notification created", "id", n.ID, "status", n.Status)
	return n, nil
}

func (s *Service) Update(ctx context.Context, id uint, req *UpdateRequest) (*EmailNotification, error) {
	var n EmailNotification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&n, id).Error; err != nil {
			return apperr.FromDB(err, "email notification", id, "load")
		}
		updates := map[string]any{}
		if req.Email != nil {
			email := normaliseEmail(*req.Email)
			if email != n.Email {
				if err := ensureUniqueEmail(tx, email, id); err != nil {
					return err
				}
				updates["email"] = email
			}
		}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&n).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "email notification", id, "update")
		}
		return tx.First(&n, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&EmailNotification{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete email notification %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("email notification with id %d not found", id)
	}
	return nil
}

// Active returns every Active recipient, oldest first.
func (s *Service) Active(ctx context.Context) ([]EmailNotification, error) {
	var rows []EmailNotification
	err := s.db.WithContext(ctx).Where("status = ?", StatusActive).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active email notifications: %w", err)
	}
	return rows, nil
}

// ActiveRecipients returns the addresses of the Active records.
func (s *Service) ActiveRecipients(ctx context.Context) ([]string, error) {
	rows, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.Email)
	}
	return emails, nil
}

func ensureUniqueEmail(tx *gorm.DB, email string, exceptID uint) error {
	exists, err := database.Exists(tx, &EmailNotification{}, "email = ? AND id <> ?", email, exceptID)
	if err != nil {
		return fmt.Errorf("failed to check email notification address: %w", err)
	}
	if exists {
		return apperr.Conflict("email notification for %s already exists", email).WithMeta("field", "email")
	}
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
