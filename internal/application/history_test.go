package application_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

type fakeHistoryLog struct {
	mu       sync.Mutex
	appended []model.VerificationAttempt
	// failFor makes Append fail for the given attempt IDs.
	failFor   map[string]error
	appendErr error
	list      func(busID, date string) ([]model.VerificationAttempt, error)
}

func (l *fakeHistoryLog) List(_ context.Context, busID, date string) ([]model.VerificationAttempt, error) {
	return l.list(busID, date)
}

func (l *fakeHistoryLog) Append(_ context.Context, attempt model.VerificationAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failFor[attempt.ID]; err != nil {
		return err
	}
	if l.appendErr != nil {
		return l.appendErr
	}
	l.appended = append(l.appended, attempt)
	return nil
}

func (l *fakeHistoryLog) appendedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.appended))
	for _, a := range l.appended {
		ids = append(ids, a.ID)
	}
	return ids
}

// memPending is an in-memory PendingStore ordered by insertion.
type memPending struct {
	mu      sync.Mutex
	entries []model.VerificationAttempt
}

func (p *memPending) Save(_ context.Context, attempt model.VerificationAttempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.ID == attempt.ID {
			return nil
		}
	}
	p.entries = append(p.entries, attempt)
	return nil
}

func (p *memPending) ListOldest(_ context.Context, limit int) ([]model.VerificationAttempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := min(limit, len(p.entries))
	return slices.Clone(p.entries[:n]), nil
}

func (p *memPending) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = slices.DeleteFunc(p.entries, func(e model.VerificationAttempt) bool { return e.ID == id })
	return nil
}

func (p *memPending) Count(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries), nil
}

func attempt(id string) model.VerificationAttempt {
	return model.VerificationAttempt{
		ID:        id,
		BusID:     "bus-1",
		Date:      "2026-10-18",
		Timestamp: fixedNow,
		Mode:      model.ModeFace,
		Status:    model.StatusSuccess,
	}
}

func TestHistoryService_RecordAppends(t *testing.T) {
	log := &fakeHistoryLog{}
	pending := &memPending{}
	svc := application.NewHistoryService(log, pending, nil)

	svc.Record(context.Background(), attempt("a-1"))

	assert.Equal(t, []string{"a-1"}, log.appendedIDs())
	n, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistoryService_RecordJournalsFailedAppend(t *testing.T) {
	log := &fakeHistoryLog{appendErr: &driven.TransportError{Op: "append history", Message: "Network Error"}}
	pending := &memPending{}
	svc := application.NewHistoryService(log, pending, nil)

	svc.Record(context.Background(), attempt("a-1"))
	svc.Record(context.Background(), attempt("a-1"))

	n, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "journal keeps one entry per attempt id")
}

func TestHistoryService_FlushReplaysOldestFirst(t *testing.T) {
	log := &fakeHistoryLog{}
	pending := &memPending{}
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, pending.Save(context.Background(), attempt(id)))
	}
	svc := application.NewHistoryService(log, pending, nil)

	res, err := svc.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, application.FlushResult{Sent: 3}, res)
	assert.Equal(t, []string{"a-1", "a-2", "a-3"}, log.appendedIDs())
	n, _ := pending.Count(context.Background())
	assert.Zero(t, n)
}

func TestHistoryService_FlushStopsAtFirstFailure(t *testing.T) {
	log := &fakeHistoryLog{failFor: map[string]error{"a-2": driven.ErrSessionExpired}}
	pending := &memPending{}
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, pending.Save(context.Background(), attempt(id)))
	}
	svc := application.NewHistoryService(log, pending, nil)

	res, err := svc.Flush(context.Background())
	require.ErrorIs(t, err, driven.ErrSessionExpired)

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, []string{"a-1"}, log.appendedIDs())
}

func TestHistoryService_FlushDropsRefusedAttempts(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success false", err: &driven.RejectedError{Op: "append history", Message: "bad record"}},
		{name: "bad request", err: &driven.TransportError{Op: "append history", Status: 400, Message: "missing busId"}},
		{name: "unprocessable", err: &driven.TransportError{Op: "append history", Status: 422}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &fakeHistoryLog{failFor: map[string]error{"a-1": tt.err}}
			pending := &memPending{}
			for _, id := range []string{"a-1", "a-2", "a-3"} {
				require.NoError(t, pending.Save(context.Background(), attempt(id)))
			}
			svc := application.NewHistoryService(log, pending, nil)

			res, err := svc.Flush(context.Background())
			require.NoError(t, err)

			assert.Equal(t, application.FlushResult{Sent: 2, Dropped: 1}, res)
			assert.Equal(t, []string{"a-2", "a-3"}, log.appendedIDs())
			n, _ := pending.Count(context.Background())
			assert.Zero(t, n)

			res, err = svc.Flush(context.Background())
			require.NoError(t, err)
			assert.Equal(t, application.FlushResult{}, res)
		})
	}
}

func TestHistoryService_FlushKeepsRetryableFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "network", err: &driven.TransportError{Op: "append history", Message: "Network Error"}},
		{name: "server error", err: &driven.TransportError{Op: "append history", Status: 503}},
		{name: "throttled", err: &driven.TransportError{Op: "append history", Status: 429}},
		{name: "request timeout", err: &driven.TransportError{Op: "append history", Status: 408}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &fakeHistoryLog{failFor: map[string]error{"a-1": tt.err}}
			pending := &memPending{}
			for _, id := range []string{"a-1", "a-2"} {
				require.NoError(t, pending.Save(context.Background(), attempt(id)))
			}
			svc := application.NewHistoryService(log, pending, nil)

			res, err := svc.Flush(context.Background())
			require.ErrorIs(t, err, tt.err)

			assert.Equal(t, application.FlushResult{Remaining: 2}, res)
			assert.Empty(t, log.appendedIDs())
		})
	}
}

func TestHistoryService_FlushWithoutJournal(t *testing.T) {
	svc := application.NewHistoryService(&fakeHistoryLog{}, nil, nil)

	res, err := svc.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
}

func TestHistoryService_List(t *testing.T) {
	var gotDate string
	log := &fakeHistoryLog{list: func(busID, date string) ([]model.VerificationAttempt, error) {
		gotDate = date
		if busID == "bad" {
			return nil, errors.New("boom")
		}
		return []model.VerificationAttempt{attempt("a-2"), attempt("a-1")}, nil
	}}
	svc := application.NewHistoryService(log, nil, nil)

	t.Run("explicit date keeps backend order", func(t *testing.T) {
		got, err := svc.List(context.Background(), "bus-1", "2026-10-17")
		require.NoError(t, err)
		assert.Equal(t, "2026-10-17", gotDate)
		require.Len(t, got, 2)
		assert.Equal(t, "a-2", got[0].ID)
	})

	t.Run("empty date means today", func(t *testing.T) {
		_, err := svc.List(context.Background(), "bus-1", "")
		require.NoError(t, err)
		assert.Equal(t, model.DayOf(time.Now()), gotDate)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := svc.List(context.Background(), "bus-1", "18/10/2026")
		require.Error(t, err)
	})

	t.Run("missing bus", func(t *testing.T) {
		_, err := svc.List(context.Background(), "", "2026-10-18")
		require.Error(t, err)
	})

	t.Run("backend failure", func(t *testing.T) {
		_, err := svc.List(context.Background(), "bad", "2026-10-18")
		require.Error(t, err)
	})
}
