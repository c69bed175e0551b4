package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// TokenVault is the token store for every actor kind. Storage failures are
// logged and read as "no token" so a broken store degrades into a signed-out
// terminal instead of a crash.
type TokenVault struct {
	store  driven.TokenStore
	logger *slog.Logger
}

// NewTokenVault creates a TokenVault over store.
func NewTokenVault(store driven.TokenStore, logger *slog.Logger) *TokenVault {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenVault{store: store, logger: logger}
}

// Get returns the token for kind, or ok=false when none is stored.
func (v *TokenVault) Get(ctx context.Context, kind model.ActorKind) (string, bool) {
	token, err := v.store.Get(ctx, kind)
	if err != nil {
		v.logger.Error("reading token", "actor", kind, "error", err)
		return "", false
	}
	return token, token != ""
}

// Set stores token for kind. An empty token is ignored.
func (v *TokenVault) Set(ctx context.Context, kind model.ActorKind, token string) {
	if token == "" {
		return
	}
	if err := v.store.Set(ctx, kind, token); err != nil {
		v.logger.Error("storing token", "actor", kind, "error", err)
		return
	}
	v.logger.Debug("token stored", "actor", kind, "token_present", true)
}

// Remove deletes the token for kind.
func (v *TokenVault) Remove(ctx context.Context, kind model.ActorKind) {
	if err := v.store.Delete(ctx, kind); err != nil {
		v.logger.Error("removing token", "actor", kind, "error", err)
		return
	}
	v.logger.Debug("token removed", "actor", kind)
}

// Exists reports whether a token is stored for kind.
func (v *TokenVault) Exists(ctx context.Context, kind model.ActorKind) bool {
	_, ok := v.Get(ctx, kind)
	return ok
}

// Session returns the per-actor view of the vault handed to that actor's
// backend client.
func (v *TokenVault) Session(kind model.ActorKind) *AuthSession {
	return &AuthSession{kind: kind, vault: v}
}

// AuthSession is one actor's token slot. It can only ever read or write the
// slot of the kind it was created for.
type AuthSession struct {
	kind  model.ActorKind
	vault *TokenVault
}

// Kind returns the actor kind the session belongs to.
func (s *AuthSession) Kind() model.ActorKind {
	return s.kind
}

func (s *AuthSession) Token(ctx context.Context) (string, bool) {
	return s.vault.Get(ctx, s.kind)
}

func (s *AuthSession) StoreToken(ctx context.Context, token string) {
	s.vault.Set(ctx, s.kind, token)
}

func (s *AuthSession) ClearToken(ctx context.Context) {
	s.vault.Remove(ctx, s.kind)
}
