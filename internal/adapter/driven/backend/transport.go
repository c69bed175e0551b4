package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// TokenKeeper is the per-actor token slot a client authenticates with.
type TokenKeeper interface {
	// Token returns the current token, or ok=false when none is stored.
	Token(ctx context.Context) (token string, ok bool)
	StoreToken(ctx context.Context, token string)
	ClearToken(ctx context.Context)
}

type retriedKey struct{}

type passthroughKey struct{}

// markRetried flags a request context as already retried after a refresh.
func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// withoutSessionHook lets a 401 reach the caller untouched. Credential
// endpoints use it so a wrong password is not mistaken for an expired session.
func withoutSessionHook(ctx context.Context) context.Context {
	return context.WithValue(ctx, passthroughKey{}, true)
}

func sessionHookDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(passthroughKey{}).(bool)
	return v
}

// bearerTransport is the pre-request hook: it attaches the actor's token when
// one is stored and lets the request through unauthenticated otherwise.
type bearerTransport struct {
	next   http.RoundTripper
	tokens TokenKeeper
	kind   model.ActorKind
	logger *slog.Logger
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := t.tokens.Token(req.Context())
	if !ok {
		t.logger.Debug("no token for request", "actor", t.kind, "path", req.URL.Path)
		return t.next.RoundTrip(req)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return t.next.RoundTrip(authed)
}

// sessionTransport is the post-response hook. On a 401 for a request that
// has not been retried yet it runs the refresh guard once and replays the
// request; any other 401 ends the session.
type sessionTransport struct {
	next      http.RoundTripper
	kind      model.ActorKind
	tokens    TokenKeeper
	refresher *Refresher // nil disables refresh
	onEnded   func(model.ActorKind)
	logger    *slog.Logger
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	ctx := req.Context()
	if sessionHookDisabled(ctx) {
		return resp, nil
	}
	drain(resp)

	if t.refresher == nil || isRetried(ctx) {
		t.logger.Warn("unauthorized response, ending session",
			"actor", t.kind, "path", req.URL.Path, "retried", isRetried(ctx))
		t.endSession(ctx)
		return nil, driven.ErrSessionExpired
	}

	t.logger.Info("unauthorized response, attempting token refresh", "actor", t.kind, "path", req.URL.Path)
	retryCtx := markRetried(ctx)
	if !t.refresher.Refresh(retryCtx) {
		t.endSession(ctx)
		return nil, driven.ErrSessionExpired
	}

	retry, err := rewind(req.Clone(retryCtx))
	if err != nil {
		return nil, err
	}
	return t.RoundTrip(retry)
}

func (t *sessionTransport) endSession(ctx context.Context) {
	t.tokens.ClearToken(ctx)
	if t.onEnded != nil {
		t.onEnded(t.kind)
	}
}

// rewind resets a cloned request's body so it can be sent a second time.
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}
