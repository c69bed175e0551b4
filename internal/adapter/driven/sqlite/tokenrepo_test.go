package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestTokenRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, model.ActorConductor, "tok-abc123"))

	val, err := repo.Get(ctx, model.ActorConductor)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc123", val)
}

func TestTokenRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, nil)
	require.NoError(t, err)

	val, err := repo.Get(context.Background(), model.ActorUser)
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

func TestTokenRepo_ActorSlotsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, model.ActorUser, "user-token"))
	require.NoError(t, repo.Set(ctx, model.ActorConductor, "conductor-token"))
	require.NoError(t, repo.Delete(ctx, model.ActorUser))

	userTok, err := repo.Get(ctx, model.ActorUser)
	require.NoError(t, err)
	assert.Equal(t, "", userTok)

	condTok, err := repo.Get(ctx, model.ActorConductor)
	require.NoError(t, err)
	assert.Equal(t, "conductor-token", condTok)
}

func TestTokenRepo_UpsertOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, model.ActorConductor, "old"))
	require.NoError(t, repo.Set(ctx, model.ActorConductor, "new"))

	val, err := repo.Get(ctx, model.ActorConductor)
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestTokenRepo_ValuesAreEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, model.ActorConductor, "plain-secret"))

	var stored string
	err = db.Reader.QueryRowContext(ctx, `SELECT value FROM tokens WHERE actor = 'conductor'`).Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "plain-secret")
}

func TestTokenRepo_WrongKeyFailsToOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	writer, err := NewTokenRepo(db, testKey())
	require.NoError(t, err)
	require.NoError(t, writer.Set(ctx, model.ActorConductor, "secret"))

	reader, err := NewTokenRepo(db, bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)

	_, err = reader.Get(ctx, model.ActorConductor)
	assert.Error(t, err)
}

func TestTokenRepo_RejectsShortKey(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewTokenRepo(db, []byte("short"))
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyInvalid)
}

func TestTokenRepo_DeleteNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo, err := NewTokenRepo(db, nil)
	require.NoError(t, err)

	assert.NoError(t, repo.Delete(context.Background(), model.ActorUser))
}

func TestTokenRepo_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "passverify.db")
	ctx := context.Background()

	db, err := NewDB(ctx, path)
	require.NoError(t, err)
	_, err = RunMigrations(db.Writer)
	require.NoError(t, err)
	repo, err := NewTokenRepo(db, testKey())
	require.NoError(t, err)
	require.NoError(t, repo.Set(ctx, model.ActorConductor, "durable"))
	require.NoError(t, db.Close())

	db, err = NewDB(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = RunMigrations(db.Writer)
	require.NoError(t, err)
	repo, err = NewTokenRepo(db, testKey())
	require.NoError(t, err)

	val, err := repo.Get(ctx, model.ActorConductor)
	require.NoError(t, err)
	assert.Equal(t, "durable", val)
}
