package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// memTokenStore is an in-memory TokenStore whose operations can be made to fail.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[model.ActorKind]string
	err    error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[model.ActorKind]string)}
}

func (s *memTokenStore) Get(_ context.Context, kind model.ActorKind) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.tokens[kind], nil
}

func (s *memTokenStore) Set(_ context.Context, kind model.ActorKind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tokens[kind] = token
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, kind model.ActorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.tokens, kind)
	return nil
}

func TestTokenVault_SlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	vault := application.NewTokenVault(newMemTokenStore(), nil)

	vault.Set(ctx, model.ActorUser, "user-token")
	vault.Set(ctx, model.ActorConductor, "conductor-token")

	got, ok := vault.Get(ctx, model.ActorUser)
	assert.True(t, ok)
	assert.Equal(t, "user-token", got)

	vault.Remove(ctx, model.ActorConductor)
	assert.False(t, vault.Exists(ctx, model.ActorConductor))
	assert.True(t, vault.Exists(ctx, model.ActorUser))
}

func TestTokenVault_EmptyTokenIsIgnored(t *testing.T) {
	ctx := context.Background()
	vault := application.NewTokenVault(newMemTokenStore(), nil)

	vault.Set(ctx, model.ActorConductor, "kept")
	vault.Set(ctx, model.ActorConductor, "")

	got, ok := vault.Get(ctx, model.ActorConductor)
	assert.True(t, ok)
	assert.Equal(t, "kept", got)
}

func TestTokenVault_StorageFailureReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := newMemTokenStore()
	vault := application.NewTokenVault(store, nil)
	vault.Set(ctx, model.ActorConductor, "tok")

	store.err = errors.New("disk I/O error")

	_, ok := vault.Get(ctx, model.ActorConductor)
	assert.False(t, ok)
	assert.False(t, vault.Exists(ctx, model.ActorConductor))
	assert.NotPanics(t, func() {
		vault.Set(ctx, model.ActorConductor, "other")
		vault.Remove(ctx, model.ActorConductor)
	})
}

func TestAuthSession_IsScopedToItsKind(t *testing.T) {
	ctx := context.Background()
	vault := application.NewTokenVault(newMemTokenStore(), nil)
	user := vault.Session(model.ActorUser)
	conductor := vault.Session(model.ActorConductor)

	assert.Equal(t, model.ActorUser, user.Kind())

	conductor.StoreToken(ctx, "c-token")
	_, ok := user.Token(ctx)
	assert.False(t, ok)

	got, ok := conductor.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "c-token", got)

	user.StoreToken(ctx, "u-token")
	user.ClearToken(ctx)
	got, ok = conductor.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "c-token", got)
}
