package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

func pendingAttempt(id string, at time.Time) model.VerificationAttempt {
	return model.VerificationAttempt{
		ID:          id,
		BusID:       "bus-1",
		BusNumber:   "AP39Z1234",
		Date:        model.DayOf(at),
		Timestamp:   at,
		Mode:        model.ModeFace,
		SubjectID:   "U1",
		SubjectName: "Asha",
		PassID:      "P-9",
		PassType:    "student",
		Route:       model.Route{From: "Srikakulam", To: "Rajam"},
		Status:      model.StatusSuccess,
		Message:     "Pass verified successfully",
	}
}

func TestPendingRepo_SaveAndListOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, pendingAttempt("b", base.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, pendingAttempt("a", base)))

	got, err := repo.ListOldest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	assert.Equal(t, "Srikakulam", got[0].Route.From)
	assert.Equal(t, model.StatusSuccess, got[0].Status)
	assert.Equal(t, model.ModeFace, got[0].Mode)
	assert.True(t, base.Equal(got[0].Timestamp))
}

func TestPendingRepo_SaveIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingRepo(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, pendingAttempt("same", at)))
	require.NoError(t, repo.Save(ctx, pendingAttempt("same", at)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPendingRepo_ListRespectsLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, pendingAttempt(id, base.Add(time.Duration(i)*time.Second))))
	}

	got, err := repo.ListOldest(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPendingRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, pendingAttempt("gone", time.Now())))
	require.NoError(t, repo.Delete(ctx, "gone"))
	require.NoError(t, repo.Delete(ctx, "never-existed"))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPendingRepo_SaveRequiresID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPendingRepo(db)

	err := repo.Save(context.Background(), pendingAttempt("", time.Now()))
	assert.Error(t, err)
}
