package quote

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/customer"
	"github.com/millworks/backoffice/internal/database/dbtest"
	"github.com/millworks/backoffice/internal/outbox"
	"github.com/millworks/backoffice/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	models := append(customer.Models(), Models()...)
	db := dbtest.New(t, append(models, outbox.Models()...)...)
	require.NoError(t, db.Create(&customer.Customer{Name: "Northwind Apparel", Email: "buyer@northwind.test"}).Error)
	return db
}

func topics(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var msgs []outbox.Message
	require.NoError(t, db.Order("id").Find(&msgs).Error)
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Topic)
	}
	return out
}

func TestApprovalService_Create(t *testing.T) {
	svc := NewApprovalService(setupTestDB(t), Options{PublicURL: "https://portal.millworks.test/quote-approval/"})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 1001, CustomerID: 1, Payload: map[string]any{"total": "1250.00"}}, "rep@millworks.test")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, approval.Status)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), approval.TokenHash)
	assert.Equal(t, "https://portal.millworks.test/quote-approval/"+approval.TokenHash, approval.ApprovalURL)
	assert.Nil(t, approval.ExpiresAt)
	assert.Equal(t, "rep@millworks.test", approval.Payload["created_by"])
	assert.Equal(t, "1250.00", approval.Payload["total"])

	got, err := svc.FindOne(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.TokenHash, got.TokenHash)
	assert.Equal(t, uint(1001), got.QuoteID)

	_, err = svc.Create(ctx, &CreateRequest{QuoteID: 1001, CustomerID: 99}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestApprovalService_CreateRetriesTokenCollision(t *testing.T) {
	svc := NewApprovalService(setupTestDB(t), Options{})
	ctx := context.Background()

	tokens := []string{"aa", "aa", "bb"}
	svc.newToken = func() (string, error) {
		next := tokens[0]
		tokens = tokens[1:]
		return next, nil
	}

	first, err := svc.Create(ctx, &CreateRequest{QuoteID: 1, CustomerID: 1}, "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, &CreateRequest{QuoteID: 2, CustomerID: 1}, "")
	require.NoError(t, err)

	assert.Equal(t, "aa", first.TokenHash)
	assert.Equal(t, "bb", second.TokenHash)
	assert.Empty(t, tokens)

	svc.newToken = func() (string, error) { return "aa", nil }
	_, err = svc.Create(ctx, &CreateRequest{QuoteID: 3, CustomerID: 1}, "")
	assert.Error(t, err)

	svc.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }
	_, err = svc.Create(ctx, &CreateRequest{QuoteID: 3, CustomerID: 1}, "")
	assert.EqualError(t, err, "entropy exhausted")
}

func TestApprovalService_FindByToken(t *testing.T) {
	svc := NewApprovalService(setupTestDB(t), Options{TokenTTL: time.Hour})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 5, CustomerID: 1}, "")
	require.NoError(t, err)
	require.NotNil(t, approval.ExpiresAt)

	got, err := svc.FindByToken(ctx, approval.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, approval.ID, got.ID)

	_, err = svc.FindByToken(ctx, "deadbeef")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	_, err = svc.FindByToken(ctx, approval.TokenHash)
	assert.ErrorIs(t, err, apperr.ErrGone)
}

func TestApprovalService_FindByQuoteID(t *testing.T) {
	svc := NewApprovalService(setupTestDB(t), Options{})
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		a, err := svc.Create(ctx, &CreateRequest{QuoteID: 77, CustomerID: 1}, "")
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := svc.Create(ctx, &CreateRequest{QuoteID: 78, CustomerID: 1}, "")
	require.NoError(t, err)

	latest, err := svc.FindByQuoteID(ctx, 77, true)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)

	first, err := svc.FindByQuoteID(ctx, 77, false)
	require.NoError(t, err)
	assert.Equal(t, ids[0], first.ID)

	_, err = svc.FindByQuoteID(ctx, 404, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	page, err := svc.FindAll(ctx, Filter{QuoteID: 77}, utils.GetPaginationParams("1", "2"), svc.SortParams("id", "desc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	assert.Equal(t, ids[2], page.Items[0].ID)
}

func TestApprovalService_UpdateIsUnconditionalAndIdempotent(t *testing.T) {
	svc := NewApprovalService(setupTestDB(t), Options{})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 9, CustomerID: 1}, "")
	require.NoError(t, err)

	rejected := StatusRejected
	reason := "lead time"
	first, err := svc.Update(ctx, approval.ID, &UpdateRequest{Status: &rejected, Reason: &reason, Payload: map[string]any{"note": "call back"}})
	require.NoError(t, err)
	second, err := svc.Update(ctx, approval.ID, &UpdateRequest{Status: &rejected, Reason: &reason, Payload: map[string]any{"note": "call back"}})
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, second.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.Reason, *second.Reason)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, "call back", second.Payload["note"])
	assert.Contains(t, second.Payload, "created_at")

	// no transition rules: a rejected approval can go straight back to pending
	pending := StatusPending
	back, err := svc.Update(ctx, approval.ID, &UpdateRequest{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, back.Status)

	bogus := Status("ARCHIVED")
	_, err = svc.Update(ctx, approval.ID, &UpdateRequest{Status: &bogus})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = svc.Update(ctx, 999, &UpdateRequest{Status: &pending})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Remove(ctx, approval.ID))
	assert.ErrorIs(t, svc.Remove(ctx, approval.ID), apperr.ErrNotFound)
}

func TestApprovalService_DecideApproveEnqueuesSideEffects(t *testing.T) {
	db := setupTestDB(t)
	svc := NewApprovalService(db, Options{})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 12, CustomerID: 1}, "")
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, approval.TokenHash, &DecisionRequest{
		Status:        StatusApproved,
		ReviewerEmail: "buyer@northwind.test",
		QuoteSnapshot: []any{map[string]any{"sku": "KN-100", "qty": 200}},
	}, "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, decided.Status)
	assert.NotNil(t, decided.DecidedAt)
	assert.Equal(t, "203.0.113.7", decided.Payload["ip"])
	assert.Equal(t, "buyer@northwind.test", decided.Payload["reviewer_email"])
	assert.Contains(t, decided.Payload, "quote_snapshot")
	assert.Contains(t, decided.Payload, "decided_at")

	assert.Equal(t, []string{outbox.TopicQuoteStatusEmail, outbox.TopicQuoteInternalEmail, outbox.TopicOrderConvertQuote}, topics(t, db))

	var msg outbox.Message
	require.NoError(t, db.Where("topic = ?", outbox.TopicQuoteStatusEmail).First(&msg).Error)
	assert.Equal(t, "buyer@northwind.test", msg.Payload["customer_email"])
	assert.Equal(t, "APPROVED", msg.Payload["status"])

	_, err = svc.Decide(ctx, approval.TokenHash, &DecisionRequest{Status: StatusRejected, ReviewerEmail: "buyer@northwind.test"}, "203.0.113.7")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Len(t, topics(t, db), 3)
}

func TestApprovalService_DecideReject(t *testing.T) {
	db := setupTestDB(t)
	svc := NewApprovalService(db, Options{})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 13, CustomerID: 1}, "")
	require.NoError(t, err)

	decided, err := svc.Decide(ctx, approval.TokenHash, &DecisionRequest{
		Status:        StatusRejected,
		Reason:        "price too high",
		ReviewerEmail: "buyer@northwind.test",
		QuoteSnapshot: map[string]any{"ignored": true},
	}, "198.51.100.4")
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, decided.Status)
	require.NotNil(t, decided.Reason)
	assert.Equal(t, "price too high", *decided.Reason)
	assert.NotContains(t, decided.Payload, "quote_snapshot")
	assert.Equal(t, []string{outbox.TopicQuoteStatusEmail, outbox.TopicQuoteInternalEmail}, topics(t, db))
}

func TestApprovalService_DecideRefusals(t *testing.T) {
	db := setupTestDB(t)
	svc := NewApprovalService(db, Options{TokenTTL: time.Minute})
	ctx := context.Background()

	approval, err := svc.Create(ctx, &CreateRequest{QuoteID: 14, CustomerID: 1}, "")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, "unknown", &DecisionRequest{Status: StatusApproved, ReviewerEmail: "a@b.test"}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Decide(ctx, approval.TokenHash, &DecisionRequest{Status: StatusPending, ReviewerEmail: "a@b.test"}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	_, err = svc.Decide(ctx, approval.TokenHash, &DecisionRequest{Status: StatusApproved, ReviewerEmail: "a@b.test"}, "")
	assert.ErrorIs(t, err, apperr.ErrGone)

	assert.Empty(t, topics(t, db))
	got, err := svc.FindOne(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}
