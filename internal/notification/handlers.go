package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/millworks/backoffice/internal/outbox"
)

// QuoteEmails sends the emails that follow a quote decision. Internal
// recipients are resolved when the message is delivered, not when it is queued.
type QuoteEmails struct {
	mailer     Mailer
	recipients *Service
	from       string
}

func NewQuoteEmails(mailer Mailer, recipients *Service, from string) *QuoteEmails {
	return &QuoteEmails{mailer: mailer, recipients: recipients, from: from}
}

func (q *QuoteEmails) Register(router *outbox.TopicRouter) {
	router.Handle(outbox.TopicQuoteStatusEmail, outbox.HandlerFunc(q.HandleStatus))
	router.Handle(outbox.TopicQuoteInternalEmail, outbox.HandlerFunc(q.HandleInternal))
}

// HandleStatus tells the customer the outcome of their decision.
func (q *QuoteEmails) HandleStatus(ctx context.Context, msg *outbox.Message) error {
	to := payloadString(msg, "customer_email")
	if to == "" {
		to = payloadString(msg, "reviewer_email")
	}
	if to == "" {
		return outbox.Permanent(fmt.Errorf("quote status email %s has no recipient", msg.EventID))
	}

	quoteID := payloadString(msg, "quote_id")
	status := strings.ToLower(payloadString(msg, "status"))
	var body strings.Builder
	fmt.Fprintf(&body, "Thank you. Quote %s has been %s.\n", quoteID, status)
	if reason := payloadString(msg, "reason"); reason != "" {
		fmt.Fprintf(&body, "\nReason given: %s\n", reason)
	}

	return q.mailer.Send(ctx, Email{
		From:    q.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Quote %s %s", quoteID, status),
		Text:    body.String(),
	}, msg.EventID)
}

// HandleInternal notifies every Active email notification recipient.
func (q *QuoteEmails) HandleInternal(ctx context.Context, msg *outbox.Message) error {
	to, err := q.recipients.ActiveRecipients(ctx)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		slog.WarnContext(ctx, "no active email notification recipients, internal quote email dropped", "event_id", msg.EventID)
		return nil
	}

	quoteID := payloadString(msg, "quote_id")
	status := payloadString(msg, "status")
	var body strings.Builder
	fmt.Fprintf(&body, "Quote %s was %s by %s.\n", quoteID, strings.ToLower(status), payloadString(msg, "reviewer_email"))
	fmt.Fprintf(&body, "Approval id: %s\nCustomer id: %s\nDecided at: %s\n",
		payloadString(msg, "approval_id"),
		payloadString(msg, "customer_id"),
		payloadString(msg, "decided_at"),
	)
	if reason := payloadString(msg, "reason"); reason != "" {
		fmt.Fprintf(&body, "Reason: %s\n", reason)
	}

	return q.mailer.Send(ctx, Email{
		From:    q.from,
		To:      to,
		Subject: fmt.Sprintf("[%s] Quote %s", status, quoteID),
		Text:    body.String(),
	}, msg.EventID)
}

func payloadString(msg *outbox.Message, key string) string {
	v, ok := msg.Payload[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
