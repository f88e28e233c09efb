package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Cleaner removes published messages once they are older than the retention.
// Dead messages are kept for inspection.
type Cleaner struct {
	db        *gorm.DB
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewCleaner(db *gorm.DB, interval, retention time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Cleaner{
		db:        db,
		interval:  interval,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Warn("outbox: cleaner tick failed", "error", err)
		}
	}
}

func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	result := c.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("outbox cleaner delete published: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		getMetrics().purgedTotal.Add(float64(result.RowsAffected))
		slog.Info("outbox: purged published messages", "count", result.RowsAffected, "cutoff", cutoff)
	}
	return result.RowsAffected, nil
}
