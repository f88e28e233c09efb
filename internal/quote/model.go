package quote

import (
	"time"

	"gorm.io/datatypes"

	"github.com/millworks/backoffice/internal/database"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Approval is a request for a customer to approve or reject a quote.
// TokenHash is the unguessable key handed to the customer in the approval link.
type Approval struct {
	database.BaseModel
	QuoteID    uint              `gorm:"column:quote_id;not null;index" json:"quote_id"`
	CustomerID uint              `gorm:"column:customer_id;not null;index" json:"customer_id"`
	Status     Status            `gorm:"type:varchar(10);column:status;not null;index" json:"status"`
	Reason     *string           `gorm:"type:text;column:reason" json:"reason"`
	TokenHash  string            `gorm:"type:char(64);column:token_hash;not null;uniqueIndex" json:"token_hash"`
	Payload    datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	ExpiresAt  *time.Time        `gorm:"column:expires_at" json:"expires_at"`
	DecidedAt  *time.Time        `gorm:"column:decided_at" json:"decided_at"`

	ApprovalURL string `gorm:"-" json:"approval_url,omitempty"`
}

func (a *Approval) TableName() string {
	return "quote_approvals"
}

// Expired reports whether the approval link stopped working before now.
func (a *Approval) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

func Models() []any {
	return []any{&Approval{}}
}

type CreateRequest struct {
	QuoteID    uint           `json:"quote_id" binding:"required"`
	CustomerID uint           `json:"customer_id" binding:"required"`
	Payload    map[string]any `json:"payload"`
}

// UpdateRequest is applied as-is: any status may follow any other.
type UpdateRequest struct {
	Status  *Status        `json:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
	Reason  *string        `json:"reason"`
	Payload map[string]any `json:"payload"`
}

type DecisionRequest struct {
	Status        Status `json:"status" binding:"required,oneof=APPROVED REJECTED"`
	Reason        string `json:"reason" binding:"max=2000"`
	ReviewerEmail string `json:"reviewer_email" binding:"required,email"`
	QuoteSnapshot any    `json:"quote_snapshot"`
}

type Filter struct {
	QuoteID    uint
	CustomerID uint
	Status     Status
}
