package uploads

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/millworks/backoffice/internal/uploads/drivers"
)

// sniffLen is how much of the content is inspected when the client sent no usable type.
const sniffLen = 3072

// ErrInvalidKey is returned for keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

type UploadService struct {
	Driver        StorageDriver
	PresignExpiry time.Duration
}

func NewUploadService(driver StorageDriver, presignExpiry time.Duration) *UploadService {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &UploadService{Driver: driver, PresignExpiry: presignExpiry}
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

// Upload stores content under a fresh key. The content type is detected from the
// bytes when declaredType is empty or generic. Size and checksum are measured
// while streaming, so client-reported sizes are never trusted.
func (s *UploadService) Upload(ctx context.Context, filename string, content io.Reader, declaredType string) (*StoredFile, error) {
	mimeType, content, err := detectType(content, declaredType)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	key := uuid.New().String() + strings.ToLower(filepath.Ext(filename))
	hash := sha256.New()
	var size byteCounter
	body := io.TeeReader(content, io.MultiWriter(hash, &size))

	if err := s.Driver.Save(ctx, key, body, drivers.ObjectInfo{ContentType: mimeType, FileName: filename}); err != nil {
		return nil, fmt.Errorf("storage driver failed: %w", err)
	}

	url, err := s.Driver.GenerateURL(ctx, key, s.PresignExpiry)
	if err != nil {
		if delErr := s.Driver.Delete(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to cleanup orphaned object", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("failed to generate URL: %w", err)
	}

	stored := &StoredFile{
		Key:      key,
		Name:     filename,
		URL:      url,
		Size:     int64(size),
		MimeType: mimeType,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}
	slog.InfoContext(ctx, "object stored", "key", key, "size", stored.Size, "mime_type", mimeType)
	return stored, nil
}

func detectType(content io.Reader, declared string) (string, io.Reader, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, content, nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), content), nil
}

func (s *UploadService) Download(ctx context.Context, key string) (io.ReadCloser, drivers.ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, drivers.ObjectInfo{}, err
	}
	return s.Driver.Get(ctx, key)
}

// Delete removes a stored object. Missing objects are not an error.
func (s *UploadService) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.Driver.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	slog.InfoContext(ctx, "object deleted", "key", key)
	return nil
}

// URL returns a link to the object and the time it stops working.
func (s *UploadService) URL(ctx context.Context, key string) (string, time.Time, error) {
	if err := validateKey(key); err != nil {
		return "", time.Time{}, err
	}
	url, err := s.Driver.GenerateURL(ctx, key, s.PresignExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate URL: %w", err)
	}
	return url, time.Now().UTC().Add(s.PresignExpiry), nil
}

// Keys are flat: anything that could name a directory is rejected.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
