package outbox

import (
	"time"

	"gorm.io/datatypes"

	"github.com/millworks/backoffice/internal/database"
)

const (
	TopicQuoteStatusEmail   = "email.quote_status"
	TopicQuoteInternalEmail = "email.quote_internal"
	TopicOrderConvertQuote  = "order.convert_quote"
)

// Message is one side effect recorded in the same transaction as the state change that caused it.
// EventID is handed to consumers as the idempotency key.
type Message struct {
	database.BaseModel
	Topic       string            `gorm:"type:varchar(100);column:topic;not null;index" json:"topic"`
	EventID     string            `gorm:"type:varchar(36);column:event_id;not null;uniqueIndex" json:"event_id"`
	Payload     datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	Attempts    int               `gorm:"column:attempts;not null;default:0" json:"attempts"`
	AvailableAt time.Time         `gorm:"column:available_at;not null;index" json:"available_at"`
	LockedAt    *time.Time        `gorm:"column:locked_at" json:"locked_at"`
	PublishedAt *time.Time        `gorm:"column:published_at;index" json:"published_at"`
	DeadAt      *time.Time        `gorm:"column:dead_at" json:"dead_at"`
	LastError   *string           `gorm:"type:text;column:last_error" json:"last_error"`
}

func (m *Message) TableName() string {
	return "outbox_messages"
}

func Models() []any {
	return []any{&Message{}}
}
