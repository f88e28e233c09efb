package notification

import (
	"context"
	"log/slog"

	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/integration"
)

type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Mailer hands an email to the delivery service. Implementations must pass
// idempotencyKey along so a redelivered message is not sent twice.
type Mailer interface {
	Send(ctx context.Context, email Email, idempotencyKey string) error
}

// HTTPMailer posts emails to the internal email endpoint.
type HTTPMailer struct {
	endpoint string
	apiKey   string
	client   *integration.Client
}

func NewHTTPMailer(endpoint, apiKey string, client *integration.Client) *HTTPMailer {
	return &HTTPMailer{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (m *HTTPMailer) Send(ctx context.Context, email Email, idempotencyKey string) error {
	var headers map[string]string
	if m.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + m.apiKey}
	}
	if err := m.client.PostJSON(ctx, m.endpoint, email, idempotencyKey, headers); err != nil {
		return integration.Classify(err)
	}
	slog.InfoContext(ctx, "email sent", "subject", email.Subject, "recipients", len(email.To))
	return nil
}

// LogMailer only logs. It stands in when no email endpoint is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, email Email, idempotencyKey string) error {
	slog.InfoContext(ctx, "email endpoint not configured, email logged only",
		"to", email.To,
		"subject", email.Subject,
		"idempotency_key", idempotencyKey,
	)
	return nil
}

func NewMailerFromConfig(cfg config.IntegrationsConfig, client *integration.Client) Mailer {
	if cfg.EmailEndpoint == "" {
		return LogMailer{}
	}
	return NewHTTPMailer(cfg.EmailEndpoint, cfg.EmailAPIKey, client)
}
