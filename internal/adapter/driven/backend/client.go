// Package backend implements the driven backend ports against the pass
// service's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Compile-time interface satisfaction checks.
var (
	_ driven.FaceRecognizer = (*Client)(nil)
	_ driven.PassChecker    = (*Client)(nil)
	_ driven.HistoryLog     = (*Client)(nil)
	_ driven.ConductorAuth  = (*Client)(nil)
	_ driven.BusDirectory   = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Kind    model.ActorKind
	Tokens  TokenKeeper

	// Refresher enables the single-refresh retry on 401. Nil means a 401
	// ends the session straight away.
	Refresher *Refresher

	// OnSessionEnded is called after a 401 cleared the actor's token.
	OnSessionEnded func(model.ActorKind)

	// Transport is the innermost round tripper. Defaults to a clone of
	// http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client is an actor-scoped REST client. Each actor kind gets its own Client
// so tokens are never shared between them.
type Client struct {
	http    *http.Client
	baseURL string
	kind    model.ActorKind
	logger  *slog.Logger
}

// NewClient creates a Client with the following transport stack:
//  1. session hook (401 handling, optional single refresh and retry)
//  2. bearer hook (attaches the actor's token to every request)
//  3. httpcache (ETag-based conditional request caching)
//  4. the base transport
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("actor", string(opts.Kind))

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = base

	var rt http.RoundTripper = &bearerTransport{
		next:   cache,
		tokens: opts.Tokens,
		kind:   opts.Kind,
		logger: logger,
	}
	rt = &sessionTransport{
		next:      rt,
		kind:      opts.Kind,
		tokens:    opts.Tokens,
		refresher: opts.Refresher,
		onEnded:   opts.OnSessionEnded,
		logger:    logger,
	}

	return &Client{
		http:    &http.Client{Transport: rt, Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		kind:    opts.Kind,
		logger:  logger,
	}
}

// envelope is the part every backend response shares.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) ok() bool {
	return e.Success != nil && *e.Success
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// doJSON sends body (if non-nil) as JSON and decodes the response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}
	return c.do(ctx, op, method, path, "application/json", raw, out)
}

// do performs one request. Non-2xx responses and network failures become a
// *TransportError; a session the hooks could not recover is ErrSessionExpired.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, driven.ErrSessionExpired) {
			return driven.ErrSessionExpired
		}
		c.logger.Warn("backend request failed", "op", op, "error", err)
		return &driven.TransportError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &driven.TransportError{Op: op, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"cached", resp.Header.Get(httpcache.XFromCache) != "",
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		return &driven.TransportError{
			Op:       op,
			Status:   resp.StatusCode,
			Message:  env.message(),
			Declined: env.Success != nil && !*env.Success,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &driven.TransportError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("%s: invalid response body", op),
			Err:     err,
		}
	}
	return nil
}

// credentialRejection reports whether err is a credential endpoint turning
// down the supplied credentials, returning the server's message.
func credentialRejection(err error) (string, bool) {
	var te *driven.TransportError
	if !errors.As(err, &te) {
		return "", false
	}
	switch te.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return te.Message, true
	}
	return "", false
}
