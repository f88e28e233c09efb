package uploads

import (
	"context"
	"io"
	"time"

	"github.com/millworks/backoffice/internal/uploads/drivers"
)

// StorageDriver is where customer file content lives. Rows in customer_files
// only hold the key.
type StorageDriver interface {
	Save(ctx context.Context, key string, body io.Reader, info drivers.ObjectInfo) error

	// Get fails with an error wrapping fs.ErrNotExist for unknown keys.
	Get(ctx context.Context, key string) (io.ReadCloser, drivers.ObjectInfo, error)

	// Delete is a no-op for unknown keys.
	Delete(ctx context.Context, key string) error

	GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

var (
	_ StorageDriver = (*drivers.LocalFSDriver)(nil)
	_ StorageDriver = (*drivers.S3Driver)(nil)
)
