package outbox

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/internal/database/dbtest"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, msg *Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.EventID)
	return h.err
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func newTestRelay(t *testing.T, db *gorm.DB, d Dispatcher, opts RelayOptions) (*Relay, *clock) {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	relay, err := NewRelay(db, d, opts)
	require.NoError(t, err)
	c := &clock{t: time.Now().UTC().Add(2 * time.Second).Truncate(time.Second)}
	relay.now = c.now
	return relay, c
}

func load(t *testing.T, db *gorm.DB, id uint) Message {
	t.Helper()
	var msg Message
	require.NoError(t, db.First(&msg, id).Error)
	return msg
}

func TestRelay_DeliversAndAcks(t *testing.T) {
	db := dbtest.New(t, Models()...)
	handler := &recordingHandler{}
	router := NewTopicRouter()
	router.Handle(TopicQuoteStatusEmail, handler)
	relay, _ := newTestRelay(t, db, router, RelayOptions{})

	first, err := Enqueue(db, TopicQuoteStatusEmail, map[string]any{"quote_id": "Q-1"})
	require.NoError(t, err)
	second, err := Enqueue(db, TopicQuoteStatusEmail, map[string]any{"quote_id": "Q-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.EventID, second.EventID)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{first.EventID, second.EventID}, handler.seen)

	msg := load(t, db, first.ID)
	assert.NotNil(t, msg.PublishedAt)
	assert.Nil(t, msg.LockedAt)
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, "Q-1", msg.Payload["quote_id"])

	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_RetriesWithBackoff(t *testing.T) {
	db := dbtest.New(t, Models()...)
	handler := &recordingHandler{err: errors.New("smtp gateway unavailable")}
	router := NewTopicRouter()
	router.Handle(TopicQuoteInternalEmail, handler)
	relay, clk := newTestRelay(t, db, router, RelayOptions{MaxAttempts: 5, JitterMax: 500 * time.Millisecond})

	queued, err := Enqueue(db, TopicQuoteInternalEmail, map[string]any{"quote_id": "Q-9"})
	require.NoError(t, err)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	msg := load(t, db, queued.ID)
	assert.Nil(t, msg.PublishedAt)
	assert.Nil(t, msg.DeadAt)
	assert.Nil(t, msg.LockedAt)
	assert.Equal(t, 1, msg.Attempts)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "smtp gateway unavailable", *msg.LastError)
	assert.False(t, msg.AvailableAt.Before(clk.t.Add(time.Second)))
	assert.False(t, msg.AvailableAt.After(clk.t.Add(1500*time.Millisecond)))

	// not yet due
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	clk.t = clk.t.Add(2 * time.Second)
	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, load(t, db, queued.ID).Attempts)
}

func TestRelay_DeadLettersAfterMaxAttempts(t *testing.T) {
	db := dbtest.New(t, Models()...)
	router := NewTopicRouter()
	router.Handle(TopicOrderConvertQuote, HandlerFunc(func(context.Context, *Message) error {
		return errors.New("order service returned 503")
	}))
	relay, clk := newTestRelay(t, db, router, RelayOptions{MaxAttempts: 2})

	queued, err := Enqueue(db, TopicOrderConvertQuote, map[string]any{"quote_id": "Q-3"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		n, err := relay.ProcessOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, n)
		clk.t = clk.t.Add(time.Hour)
	}

	msg := load(t, db, queued.ID)
	assert.NotNil(t, msg.DeadAt)
	assert.Nil(t, msg.PublishedAt)
	assert.Equal(t, 2, msg.Attempts)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_UnknownTopicIsDeadAtOnce(t *testing.T) {
	db := dbtest.New(t, Models()...)
	relay, _ := newTestRelay(t, db, NewTopicRouter(), RelayOptions{})

	queued, err := Enqueue(db, "ledger.unknown", map[string]any{})
	require.NoError(t, err)

	_, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	msg := load(t, db, queued.ID)
	assert.NotNil(t, msg.DeadAt)
	assert.Equal(t, 1, msg.Attempts)
	assert.Contains(t, *msg.LastError, "no handler")
}

func TestRelay_ReclaimsStaleLock(t *testing.T) {
	db := dbtest.New(t, Models()...)
	handler := &recordingHandler{}
	router := NewTopicRouter()
	router.Handle(TopicQuoteStatusEmail, handler)
	relay, clk := newTestRelay(t, db, router, RelayOptions{LockTTL: time.Minute})

	fresh, err := Enqueue(db, TopicQuoteStatusEmail, map[string]any{})
	require.NoError(t, err)
	stale, err := Enqueue(db, TopicQuoteStatusEmail, map[string]any{})
	require.NoError(t, err)

	require.NoError(t, db.Model(&Message{}).Where("id = ?", fresh.ID).Update("locked_at", clk.t.Add(-10*time.Second)).Error)
	require.NoError(t, db.Model(&Message{}).Where("id = ?", stale.ID).Update("locked_at", clk.t.Add(-2*time.Minute)).Error)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{stale.EventID}, handler.seen)
}

func TestEnqueue_RolledBackWithTransaction(t *testing.T) {
	db := dbtest.New(t, Models()...)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := Enqueue(tx, TopicQuoteStatusEmail, map[string]any{"quote_id": "Q-1"}); err != nil {
			return err
		}
		return errors.New("decision failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&Message{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err = Enqueue(db, "", nil)
	assert.Error(t, err)
}

func TestCleaner_PurgesOnlyOldPublished(t *testing.T) {
	db := dbtest.New(t, Models()...)
	now := time.Now().UTC().Truncate(time.Second)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	oldMsg, err := Enqueue(db, TopicQuoteStatusEmail, nil)
	require.NoError(t, err)
	recentMsg, err := Enqueue(db, TopicQuoteStatusEmail, nil)
	require.NoError(t, err)
	deadMsg, err := Enqueue(db, TopicQuoteStatusEmail, nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(&Message{}).Where("id = ?", oldMsg.ID).Update("published_at", old).Error)
	require.NoError(t, db.Model(&Message{}).Where("id = ?", recentMsg.ID).Update("published_at", recent).Error)
	require.NoError(t, db.Model(&Message{}).Where("id = ?", deadMsg.ID).Update("dead_at", old).Error)

	cleaner := NewCleaner(db, time.Hour, 24*time.Hour)
	cleaner.now = func() time.Time { return now }

	purged, err := cleaner.CleanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining []Message
	require.NoError(t, db.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, recentMsg.ID, remaining[0].ID)
	assert.Equal(t, deadMsg.ID, remaining[1].ID)
}

func TestRelay_ClaimSkipsLockedRowsOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	mock.ExpectPing()
	db, err := database.Open(postgres.New(postgres.Config{Conn: sqlDB}), "silent")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_messages" WHERE .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "event_id"}))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "outbox_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	relay, err := NewRelay(db, NewTopicRouter(), RelayOptions{})
	require.NoError(t, err)

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackoff(t *testing.T) {
	maxBackoff := 60 * time.Second
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 0},
		{attempts: 1, want: time.Second},
		{attempts: 2, want: 2 * time.Second},
		{attempts: 3, want: 4 * time.Second},
		{attempts: 7, want: 60 * time.Second},
		{attempts: 200, want: 60 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, backoff(tc.attempts, maxBackoff), "attempts=%d", tc.attempts)
	}
}

func TestJitterDeterministic(t *testing.T) {
	maxJitter := 200 * time.Millisecond
	got := jitter(rand.New(rand.NewSource(1)), maxJitter)
	assert.GreaterOrEqual(t, got, time.Duration(0))
	assert.LessOrEqual(t, got, maxJitter)
	assert.Equal(t, got, jitter(rand.New(rand.NewSource(1)), maxJitter))
	assert.Zero(t, jitter(nil, maxJitter))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "héllo", truncateString("héllo", 10))
	assert.Equal(t, "h", truncateString("héllo", 2))
}
