package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Tokens is a fresh token set issued by the identity provider.
type Tokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

// ErrRefreshRejected means the refresh endpoint refused the refresh token.
var ErrRefreshRejected = errors.New("refresh token rejected")

// RefreshClient calls the internal token refresh endpoint
type RefreshClient struct {
	url        string
	httpClient *http.Client
}

// NewRefreshClient creates a RefreshClient for url
func NewRefreshClient(url string, timeout time.Duration) *RefreshClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RefreshClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Refresh posts {"refresh_token": ...} and expects a Tokens body. When the provider
// does not rotate the refresh token the one sent is carried over.
func (rc *RefreshClient) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if rc.url == "" {
		return nil, fmt.Errorf("refresh endpoint is not configured")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("refresh endpoint returned status %d", resp.StatusCode)
	}

	var tokens Tokens
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tokens.IDToken == "" {
		return nil, fmt.Errorf("refresh response did not include an id token")
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}

	slog.DebugContext(ctx, "session tokens refreshed")
	return &tokens, nil
}
