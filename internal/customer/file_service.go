package customer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/uploads"
	"github.com/millworks/backoffice/utils"
)

var fileSortColumns = map[string]string{
	"id":        "id",
	"fileName":  "file_name",
	"mimeType":  "mime_type",
	"size":      "size",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"deletedAt": "deleted_at",
}

var defaultFileSort = utils.SortParams{Column: "created_at", Desc: true}

// FileService manages customer file metadata. Rows move from live to archived
// (soft delete) and from archived to removed (permanent delete); archived rows may
// also be restored. Stored objects are only written here on upload; removing them is
// left to DELETE /uploads/:key.
type FileService struct {
	db      *gorm.DB
	uploads *uploads.UploadService
}

func NewFileService(db *gorm.DB, uploads *uploads.UploadService) *FileService {
	return &FileService{db: db, uploads: uploads}
}

func (s *FileService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, fileSortColumns, defaultFileSort)
}

// List returns live files unless ShowArchived or OnlyArchived asks for archived ones.
func (s *FileService) List(ctx context.Context, filter FileFilter, page utils.PageParams, sort utils.SortParams) (utils.Page[File], error) {
	query := s.db.WithContext(ctx).Model(&File{})
	switch {
	case filter.OnlyArchived:
		query = query.Unscoped().Where("deleted_at IS NOT NULL")
	case filter.ShowArchived:
		query = query.Unscoped()
	}

	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.MimeType != "" {
		query = query.Where("mime_type LIKE ? ESCAPE '\\'", utils.PrefixPattern(filter.MimeType))
	}
	if filter.Search != "" {
		query = query.Where(utils.ILike("file_name"), utils.ContainsPattern(filter.Search))
	}
	return utils.Paginate[File](query, page, sort)
}

// Get returns a file whether it is live or archived.
func (s *FileService) Get(ctx context.Context, id uint) (*File, error) {
	var file File
	if err := s.db.WithContext(ctx).Unscoped().First(&file, id).Error; err != nil {
		return nil, apperr.FromDB(err, "customer file", id, "load")
	}
	return &file, nil
}

func (s *FileService) Create(ctx context.Context, req *CreateFileRequest) (*File, error) {
	file := &File{
		CustomerID:  req.CustomerID,
		FileName:    req.FileName,
		FileKey:     req.FileKey,
		MimeType:    req.MimeType,
		Size:        req.Size,
		Checksum:    strings.ToLower(req.Checksum),
		UploadedBy:  req.UploadedBy,
		Description: req.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, req.CustomerID); err != nil {
			return err
		}
		if err := tx.Create(file).Error; err != nil {
			return apperr.FromDB(err, "customer file", 0, "create")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "customer file created", "id", file.ID, "customer_id", file.CustomerID, "key", file.FileKey)
	return file, nil
}

// Upload stores the content and registers it in one step. The stored object is
// removed again if the row cannot be created.
func (s *FileService) Upload(ctx context.Context, customerID uint, filename string, content io.Reader, mimeType, uploadedBy string, description *string) (*File, error) {
	if err := CustomerExists(ctx, s.db, customerID); err != nil {
		return nil, err
	}

	stored, err := s.uploads.Upload(ctx, filename, content, mimeType)
	if err != nil {
		return nil, err
	}

	file, err := s.Create(ctx, &CreateFileRequest{
		CustomerID:  customerID,
		FileName:    filename,
		FileKey:     stored.Key,
		MimeType:    stored.MimeType,
		Size:        stored.Size,
		Checksum:    stored.Checksum,
		UploadedBy:  uploadedBy,
		Description: description,
	})
	if err != nil {
		if delErr := s.uploads.Delete(ctx, stored.Key); delErr != nil {
			slog.WarnContext(ctx, "failed to cleanup orphaned upload", "key", stored.Key, "error", delErr)
		}
		return nil, err
	}
	return file, nil
}

// Update edits a live file. Archived files must be restored first.
func (s *FileService) Update(ctx context.Context, id uint, req *UpdateFileRequest) (*File, error) {
	var file File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadLive(tx, id, &file); err != nil {
			return err
		}
		updates := map[string]any{}
		if req.FileName != nil {
			updates["file_name"] = *req.FileName
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&file).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "customer file", id, "update")
		}
		return tx.First(&file, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// SoftDelete archives a live file.
func (s *FileService) SoftDelete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file File
		if err := s.loadLive(tx, id, &file); err != nil {
			return err
		}
		if err := tx.Delete(&file).Error; err != nil {
			return fmt.Errorf("failed to archive customer file %d: %w", id, err)
		}
		slog.InfoContext(ctx, "customer file archived", "id", id)
		return nil
	})
}

// Restore brings an archived file back to live.
func (s *FileService) Restore(ctx context.Context, id uint) (*File, error) {
	var file File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().First(&file, id).Error; err != nil {
			return apperr.FromDB(err, "customer file", id, "load")
		}
		if !file.Archived() {
			return apperr.InvalidInput("customer file %d is not soft-deleted", id)
		}
		if err := tx.Unscoped().Model(&file).Update("deleted_at", nil).Error; err != nil {
			return fmt.Errorf("failed to restore customer file %d: %w", id, err)
		}
		file.DeletedAt = gorm.DeletedAt{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "customer file restored", "id", id)
	return &file, nil
}

// PermanentDelete removes an archived row for good. Live rows are rejected.
func (s *FileService) PermanentDelete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file File
		if err := tx.Unscoped().First(&file, id).Error; err != nil {
			return apperr.FromDB(err, "customer file", id, "load")
		}
		if !file.Archived() {
			return apperr.InvalidInput("customer file %d is not soft-deleted", id)
		}
		if err := tx.Unscoped().Delete(&file).Error; err != nil {
			return fmt.Errorf("failed to delete customer file %d: %w", id, err)
		}
		slog.InfoContext(ctx, "customer file permanently deleted", "id", id, "key", file.FileKey)
		return nil
	})
}

// DownloadURL returns a time-limited link to a live file's content.
func (s *FileService) DownloadURL(ctx context.Context, id uint) (*DownloadURL, error) {
	var file File
	if err := s.loadLive(s.db.WithContext(ctx), id, &file); err != nil {
		return nil, err
	}
	url, expiresAt, err := s.uploads.URL(ctx, file.FileKey)
	if err != nil {
		return nil, err
	}
	return &DownloadURL{URL: url, ExpiresAt: expiresAt}, nil
}

// loadLive loads a non-archived file, telling archived and missing rows apart.
func (s *FileService) loadLive(tx *gorm.DB, id uint, file *File) error {
	err := tx.First(file, id).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load customer file %d: %w", id, err)
	}

	var count int64
	if err := tx.Unscoped().Model(&File{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load customer file %d: %w", id, err)
	}
	if count > 0 {
		return apperr.InvalidState("customer file %d is archived", id)
	}
	return apperr.NotFound("customer file with id %d not found", id)
}
