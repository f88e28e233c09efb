package integration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/millworks/backoffice/internal/outbox"
)

// OrderConversion turns approved quotes into orders by calling the order service.
type OrderConversion struct {
	url    string
	client *Client
}

// NewOrderConversion returns a handler for order.convert_quote. With an empty url
// every message is acknowledged without a call.
func NewOrderConversion(url string, client *Client) *OrderConversion {
	return &OrderConversion{url: url, client: client}
}

func (o *OrderConversion) Handle(ctx context.Context, msg *outbox.Message) error {
	quoteID, ok := msg.Payload["quote_id"]
	if !ok {
		return outbox.Permanent(fmt.Errorf("order conversion message %s has no quote_id", msg.EventID))
	}
	if o.url == "" {
		slog.InfoContext(ctx, "order conversion endpoint not configured, skipping", "quote_id", quoteID, "event_id", msg.EventID)
		return nil
	}

	body := map[string]any{
		"quote_id":    quoteID,
		"approval_id": msg.Payload["approval_id"],
	}
	if err := o.client.PostJSON(ctx, o.url, body, msg.EventID, nil); err != nil {
		return Classify(fmt.Errorf("order conversion for quote %v: %w", quoteID, err))
	}
	slog.InfoContext(ctx, "quote sent for order conversion", "quote_id", quoteID, "event_id", msg.EventID)
	return nil
}
