package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RefreshPath is the conductor token refresh endpoint.
const RefreshPath = "/auth/conductor/refresh"

// Refresher is the token refresh guard. It talks to the backend through a
// bare http.Client so a failing refresh can never re-enter the session hook.
type Refresher struct {
	client   *http.Client
	endpoint string
	tokens   TokenKeeper
	logger   *slog.Logger
}

// NewRefresher creates a Refresher for the backend at baseURL. A nil
// httpClient gets a fresh client with the given timeout.
func NewRefresher(baseURL string, timeout time.Duration, httpClient *http.Client, tokens TokenKeeper, logger *slog.Logger) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		client:   httpClient,
		endpoint: strings.TrimRight(baseURL, "/") + RefreshPath,
		tokens:   tokens,
		logger:   logger,
	}
}

type refreshResponse struct {
	envelope
	Token string `json:"token"`
}

// Refresh exchanges the current token for a new one. It stores the new token
// and returns true on success; on any failure the token slot is left untouched.
func (r *Refresher) Refresh(ctx context.Context) bool {
	current, ok := r.tokens.Token(ctx)
	if !ok {
		r.logger.Info("token refresh skipped: no current token")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		r.logger.Error("token refresh request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+current)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("token refresh failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Warn("token refresh rejected", "status", resp.StatusCode)
		return false
	}

	var out refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		r.logger.Warn("token refresh response unreadable", "error", err)
		return false
	}
	if !out.ok() || out.Token == "" {
		r.logger.Warn("token refresh response invalid", "success", out.ok(), "token_present", out.Token != "")
		return false
	}

	r.tokens.StoreToken(ctx, out.Token)
	r.logger.Info("token refreshed")
	return true
}
