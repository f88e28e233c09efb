package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/database"
)

const lastErrorMaxLen = 2048

type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	LockTTL         time.Duration
	MaxAttempts     int
	MaxBackoff      time.Duration
	JitterMax       time.Duration
	DispatchTimeout time.Duration
	Rand            *rand.Rand
}

// RelayOptionsFrom maps the OUTBOX_* settings onto relay options.
func RelayOptionsFrom(cfg config.OutboxConfig) RelayOptions {
	return RelayOptions{
		PollInterval:    cfg.PollInterval,
		BatchSize:       cfg.BatchSize,
		LockTTL:         cfg.LockTTL,
		MaxAttempts:     cfg.MaxAttempts,
		MaxBackoff:      cfg.MaxBackoff,
		DispatchTimeout: cfg.DispatchTimeout,
	}
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.LockTTL <= 0 {
		o.LockTTL = time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 12
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Minute
	}
	if o.JitterMax <= 0 {
		o.JitterMax = time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}

// Relay delivers committed outbox messages. Several relays may share a table:
// on postgres claims skip rows another relay holds, and a lock older than
// LockTTL is treated as abandoned.
type Relay struct {
	db         *gorm.DB
	dispatcher Dispatcher
	opts       RelayOptions
	now        func() time.Time
	m          *metrics
}

func NewRelay(db *gorm.DB, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if db == nil {
		return nil, fmt.Errorf("outbox relay: db is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("outbox relay: dispatcher is required")
	}
	opts.setDefaults()
	return &Relay{
		db:         db,
		dispatcher: dispatcher,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		m:          getMetrics(),
	}, nil
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	slog.Info("outbox relay started", "poll_interval", r.opts.PollInterval, "batch_size", r.opts.BatchSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := r.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Warn("outbox: process tick failed", "error", err)
		}
	}
}

// ProcessOnce claims one batch and dispatches it, returning how many messages were claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	now := r.now()
	claimed, err := r.claim(ctx, now)
	if err != nil {
		return 0, err
	}

	for i := range claimed {
		r.deliver(ctx, &claimed[i])
	}

	r.observePending(ctx)
	return len(claimed), nil
}

func (r *Relay) deliver(ctx context.Context, msg *Message) {
	dispatchCtx := ctx
	var cancel context.CancelFunc
	if r.opts.DispatchTimeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, r.opts.DispatchTimeout)
	}
	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, msg)
	if cancel != nil {
		cancel()
	}
	latency := time.Since(start)

	logger := slog.With("topic", msg.Topic, "event_id", msg.EventID, "attempts", msg.Attempts)

	if err == nil {
		r.recordDispatch(msg.Topic, "success", latency)
		if ackErr := r.ack(ctx, msg.ID); ackErr != nil {
			logger.Warn("outbox: ack failed", "error", ackErr)
		}
		return
	}

	r.recordDispatch(msg.Topic, "failure", latency)
	lastErr := truncateString(err.Error(), lastErrorMaxLen)

	if IsPermanent(err) || msg.Attempts >= r.opts.MaxAttempts {
		r.m.deadTotal.WithLabelValues(msg.Topic).Inc()
		logger.Error("outbox: message dead-lettered", "error", err)
		if deadErr := r.dead(ctx, msg.ID, lastErr); deadErr != nil {
			logger.Warn("outbox: dead update failed", "error", deadErr)
		}
		return
	}

	next := r.now().Add(backoff(msg.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
	logger.Warn("outbox: dispatch failed, will retry", "error", err, "next_attempt_at", next)
	if nackErr := r.nack(ctx, msg.ID, lastErr, next); nackErr != nil {
		logger.Warn("outbox: nack failed", "error", nackErr)
	}
}

func (r *Relay) claim(ctx context.Context, now time.Time) ([]Message, error) {
	var claimed []Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("published_at IS NULL AND dead_at IS NULL").
			Where("available_at <= ?", now).
			Where("(locked_at IS NULL OR locked_at < ?)", now.Add(-r.opts.LockTTL)).
			Order("available_at, id").
			Limit(r.opts.BatchSize)
		if database.IsPostgres(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := query.Find(&claimed).Error; err != nil {
			return fmt.Errorf("outbox claim select: %w", err)
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uint, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
			claimed[i].Attempts++
			claimed[i].LockedAt = &now
		}
		err := tx.Model(&Message{}).Where("id IN ?", ids).Updates(map[string]any{
			"locked_at": now,
			"attempts":  gorm.Expr("attempts + 1"),
		}).Error
		if err != nil {
			return fmt.Errorf("outbox claim update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *Relay) ack(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]any{"published_at": r.now(), "locked_at": nil, "last_error": nil}).Error
	if err != nil {
		return fmt.Errorf("outbox ack: %w", err)
	}
	return nil
}

func (r *Relay) nack(ctx context.Context, id uint, lastError string, next time.Time) error {
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]any{"locked_at": nil, "last_error": lastError, "available_at": next}).Error
	if err != nil {
		return fmt.Errorf("outbox nack: %w", err)
	}
	return nil
}

func (r *Relay) dead(ctx context.Context, id uint, lastError string) error {
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]any{"locked_at": nil, "last_error": lastError, "dead_at": r.now()}).Error
	if err != nil {
		return fmt.Errorf("outbox dead: %w", err)
	}
	return nil
}

func (r *Relay) observePending(ctx context.Context) {
	var pending int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("published_at IS NULL AND dead_at IS NULL").
		Count(&pending).Error
	if err != nil {
		slog.Debug("outbox: pending count failed", "error", err)
		return
	}
	r.m.pending.Set(float64(pending))
}

func (r *Relay) recordDispatch(topic, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(topic, result).Observe(latency.Seconds())
}

func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}
