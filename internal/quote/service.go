package quote

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/customer"
	"github.com/millworks/backoffice/internal/database"
	"github.com/millworks/backoffice/internal/outbox"
	"github.com/millworks/backoffice/utils"
)

const (
	tokenBytes        = 32
	tokenMintAttempts = 5
)

var sortColumns = map[string]string{
	"id":         "id",
	"quoteId":    "quote_id",
	"customerId": "customer_id",
	"status":     "status",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

type Options struct {
	// TokenTTL bounds how long an approval link works. Zero keeps links valid forever.
	TokenTTL time.Duration
	// PublicURL is the customer-facing page the token is appended to.
	PublicURL string
}

type ApprovalService struct {
	db       *gorm.DB
	opts     Options
	now      func() time.Time
	newToken func() (string, error)
}

func NewApprovalService(db *gorm.DB, opts Options) *ApprovalService {
	return &ApprovalService{
		db:       db,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: randomToken,
	}
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *ApprovalService) SortParams(sortBy, sortOrder string) utils.SortParams {
	return utils.GetSortParams(sortBy, sortOrder, sortColumns, utils.SortParams{Column: "created_at", Desc: true})
}

func (s *ApprovalService) approvalURL(token string) string {
	if s.opts.PublicURL == "" {
		return ""
	}
	return strings.TrimSuffix(s.opts.PublicURL, "/") + "/" + token
}

// Create opens a PENDING approval for a quote and mints its token.
func (s *ApprovalService) Create(ctx context.Context, req *CreateRequest, createdBy string) (*Approval, error) {
	if err := customer.CustomerExists(ctx, s.db, req.CustomerID); err != nil {
		return nil, err
	}

	now := s.now()
	payload := datatypes.JSONMap{}
	maps.Copy(payload, req.Payload)
	payload["created_by"] = createdBy
	payload["created_at"] = now.Format(time.RFC3339)

	approval := &Approval{
		QuoteID:    req.QuoteID,
		CustomerID: req.CustomerID,
		Status:     StatusPending,
		Payload:    payload,
	}
	if s.opts.TokenTTL > 0 {
		expires := now.Add(s.opts.TokenTTL)
		approval.ExpiresAt = &expires
	}

	for attempt := 1; ; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, err
		}
		approval.ID = 0
		approval.TokenHash = token

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			taken, err := database.Exists(tx, &Approval{}, "token_hash = ?", token)
			if err != nil {
				return fmt.Errorf("failed to check approval token: %w", err)
			}
			if taken {
				return gorm.ErrDuplicatedKey
			}
			return tx.Create(approval).Error
		})
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create quote approval: %w", err)
		}
		if attempt >= tokenMintAttempts {
			return nil, fmt.Errorf("failed to mint a unique approval token after %d attempts", attempt)
		}
		slog.WarnContext(ctx, "approval token collision, minting another", "attempt", attempt)
	}

	approval.ApprovalURL = s.approvalURL(approval.TokenHash)
	slog.InfoContext(ctx, "quote approval created", "id", approval.ID, "quote_id", approval.QuoteID, "customer_id", approval.CustomerID)
	return approval, nil
}

func (s *ApprovalService) FindAll(ctx context.Context, filter Filter, page utils.PageParams, sort utils.SortParams) (utils.Page[Approval], error) {
	query := s.db.WithContext(ctx).Model(&Approval{})
	if filter.QuoteID != 0 {
		query = query.Where("quote_id = ?", filter.QuoteID)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return utils.Paginate[Approval](query, page, sort)
}

func (s *ApprovalService) FindOne(ctx context.Context, id uint) (*Approval, error) {
	var approval Approval
	if err := s.db.WithContext(ctx).First(&approval, id).Error; err != nil {
		return nil, apperr.FromDB(err, "quote approval", id, "load")
	}
	return &approval, nil
}

// FindByToken loads the approval a customer link points at.
func (s *ApprovalService) FindByToken(ctx context.Context, token string) (*Approval, error) {
	var approval Approval
	if err := s.db.WithContext(ctx).Where("token_hash = ?", token).First(&approval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("quote approval not found")
		}
		return nil, fmt.Errorf("failed to load quote approval by token: %w", err)
	}
	if approval.Expired(s.now()) {
		return nil, apperr.Gone("quote approval link has expired")
	}
	return &approval, nil
}

// FindByQuoteID returns the newest approval of a quote when latest is set and
// the first one created otherwise.
func (s *ApprovalService) FindByQuoteID(ctx context.Context, quoteID uint, latest bool) (*Approval, error) {
	order := "id ASC"
	if latest {
		order = "id DESC"
	}
	var approval Approval
	if err := s.db.WithContext(ctx).Where("quote_id = ?", quoteID).Order(order).First(&approval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no quote approval for quote %d", quoteID)
		}
		return nil, fmt.Errorf("failed to load approval for quote %d: %w", quoteID, err)
	}
	return &approval, nil
}

// Update writes the given fields without checking the status transition.
// Payload keys are merged into the stored payload.
func (s *ApprovalService) Update(ctx context.Context, id uint, req *UpdateRequest) (*Approval, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperr.InvalidInput("status %q is not one of PENDING, APPROVED, REJECTED", *req.Status).WithMeta("field", "status")
	}

	var approval Approval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&approval, id).Error; err != nil {
			return apperr.FromDB(err, "quote approval", id, "load")
		}
		updates := map[string]any{}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if req.Reason != nil {
			updates["reason"] = *req.Reason
		}
		if len(req.Payload) > 0 {
			merged := datatypes.JSONMap{}
			maps.Copy(merged, approval.Payload)
			maps.Copy(merged, req.Payload)
			updates["payload"] = merged
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&approval).Updates(updates).Error; err != nil {
			return apperr.FromDB(err, "quote approval", id, "update")
		}
		return tx.First(&approval, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &approval, nil
}

func (s *ApprovalService) Remove(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Approval{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete quote approval %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("quote approval with id %d not found", id)
	}
	return nil
}

// Decide records the customer's decision on a PENDING approval. The status
// change and the emails and order conversion it triggers are committed together.
func (s *ApprovalService) Decide(ctx context.Context, token string, req *DecisionRequest, clientIP string) (*Approval, error) {
	if req.Status != StatusApproved && req.Status != StatusRejected {
		return nil, apperr.InvalidInput("decision must be APPROVED or REJECTED").WithMeta("field", "status")
	}

	now := s.now()
	var approval Approval
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("token_hash = ?", token)
		if database.IsPostgres(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("quote approval not found")
			}
			return fmt.Errorf("failed to load quote approval by token: %w", err)
		}
		if approval.Expired(now) {
			return apperr.Gone("quote approval link has expired")
		}
		if approval.Status != StatusPending {
			return apperr.InvalidState("quote approval is already %s", approval.Status).WithMeta("status", approval.Status)
		}

		payload := datatypes.JSONMap{}
		maps.Copy(payload, approval.Payload)
		payload["ip"] = clientIP
		payload["decided_at"] = now.Format(time.RFC3339)
		payload["reviewer_email"] = req.ReviewerEmail
		if req.Status == StatusApproved && req.QuoteSnapshot != nil {
			payload["quote_snapshot"] = req.QuoteSnapshot
		}

		updates := map[string]any{
			"status":     req.Status,
			"decided_at": now,
			"payload":    payload,
		}
		if req.Reason != "" {
			updates["reason"] = req.Reason
		}
		if err := tx.Model(&approval).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		if err := tx.First(&approval, approval.ID).Error; err != nil {
			return fmt.Errorf("failed to reload quote approval: %w", err)
		}

		return s.enqueueSideEffects(tx, &approval, req)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "quote approval decided", "id", approval.ID, "quote_id", approval.QuoteID, "status", approval.Status)
	return &approval, nil
}

func (s *ApprovalService) enqueueSideEffects(tx *gorm.DB, approval *Approval, req *DecisionRequest) error {
	var cust customer.Customer
	customerEmail := ""
	if err := tx.Select("email").First(&cust, approval.CustomerID).Error; err == nil {
		customerEmail = cust.Email
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load customer %d: %w", approval.CustomerID, err)
	}

	event := map[string]any{
		"approval_id":    approval.ID,
		"quote_id":       approval.QuoteID,
		"customer_id":    approval.CustomerID,
		"customer_email": customerEmail,
		"status":         string(approval.Status),
		"reason":         req.Reason,
		"reviewer_email": req.ReviewerEmail,
		"decided_at":     approval.Payload["decided_at"],
	}

	topics := []string{outbox.TopicQuoteStatusEmail, outbox.TopicQuoteInternalEmail}
	if approval.Status == StatusApproved {
		topics = append(topics, outbox.TopicOrderConvertQuote)
	}
	for _, topic := range topics {
		if _, err := outbox.Enqueue(tx, topic, maps.Clone(event)); err != nil {
			return err
		}
	}
	return nil
}
