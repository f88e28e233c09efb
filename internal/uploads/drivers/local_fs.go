package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const metaSuffix = ".meta"

// LocalFSDriver keeps customer files on local disk. Objects are spread over a
// two-level directory tree taken from the first four characters of the key, with
// a JSON sidecar holding their ObjectInfo.
type LocalFSDriver struct {
	BaseDir   string
	PublicURL string
}

// NewLocalFSDriver creates the base directory if needed. publicURL is the
// download route links are built from (e.g. /api/v1/uploads).
func NewLocalFSDriver(baseDir, publicURL string) (*LocalFSDriver, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}
	return &LocalFSDriver{BaseDir: baseDir, PublicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (d *LocalFSDriver) path(key string) string {
	if len(key) < 4 {
		return filepath.Join(d.BaseDir, key)
	}
	return filepath.Join(d.BaseDir, key[0:2], key[2:4], key)
}

// Save streams body into a temp file and renames it into place, so a partially
// written object is never visible under its key.
func (d *LocalFSDriver) Save(ctx context.Context, key string, body io.Reader, info ObjectInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := d.path(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", key, err)
	}

	info.ContentType = info.contentType()
	sidecar, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", key, err)
	}
	if err := os.WriteFile(target+metaSuffix, sidecar, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(target + metaSuffix)
		return fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return nil
}

// Get opens the object. A missing or unreadable sidecar yields the default content type.
func (d *LocalFSDriver) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	target := d.path(key)
	f, err := os.Open(target)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("failed to open %s: %w", key, err)
	}

	var info ObjectInfo
	if raw, err := os.ReadFile(target + metaSuffix); err == nil {
		_ = json.Unmarshal(raw, &info)
	}
	info.ContentType = info.contentType()
	return f, info, nil
}

func (d *LocalFSDriver) Delete(ctx context.Context, key string) error {
	target := d.path(key)
	for _, p := range []string{target + metaSuffix, target} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// GenerateURL points at the download route. Local links do not expire.
func (d *LocalFSDriver) GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if d.PublicURL == "" {
		return key, nil
	}
	return d.PublicURL + "/" + key, nil
}
