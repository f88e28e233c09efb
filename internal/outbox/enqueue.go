package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Enqueue records a message on tx. It is only delivered if tx commits.
func Enqueue(tx *gorm.DB, topic string, payload map[string]any) (*Message, error) {
	if topic == "" {
		return nil, fmt.Errorf("outbox topic is required")
	}
	msg := &Message{
		Topic:       topic,
		EventID:     uuid.NewString(),
		Payload:     datatypes.JSONMap(payload),
		AvailableAt: time.Now().UTC(),
	}
	if err := tx.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", topic, err)
	}
	getMetrics().enqueueTotal.WithLabelValues(topic).Inc()
	return msg, nil
}
