package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// flushBatch is how many journaled attempts are loaded per flush round.
const flushBatch = 50

// FlushResult summarizes one replay of the pending journal.
type FlushResult struct {
	Sent      int
	Dropped   int
	Remaining int
}

// HistoryService records verification attempts in the backend history,
// journaling the ones the backend could not take for later replay.
type HistoryService struct {
	log     driven.HistoryLog
	pending driven.PendingStore // nil disables journaling
	logger  *slog.Logger
	now     func() time.Time
}

// NewHistoryService creates a HistoryService. pending may be nil.
func NewHistoryService(log driven.HistoryLog, pending driven.PendingStore, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{log: log, pending: pending, logger: logger, now: time.Now}
}

// List returns a bus's history for date (YYYY-MM-DD), today when empty.
func (s *HistoryService) List(ctx context.Context, busID, date string) ([]model.VerificationAttempt, error) {
	if busID == "" {
		return nil, errors.New("bus id is required")
	}
	if date == "" {
		date = model.DayOf(s.now())
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	attempts, err := s.log.List(ctx, busID, date)
	if err != nil {
		return nil, fmt.Errorf("listing history for bus %s on %s: %w", busID, date, err)
	}
	return attempts, nil
}

// Record appends an attempt to the backend history. A failed append is
// journaled and never surfaces to the caller.
func (s *HistoryService) Record(ctx context.Context, attempt model.VerificationAttempt) {
	err := s.log.Append(ctx, attempt)
	if err == nil {
		s.logger.Info("verification recorded",
			"attempt_id", attempt.ID,
			"bus_id", attempt.BusID,
			"mode", attempt.Mode,
			"status", attempt.Status,
		)
		return
	}

	s.logger.Warn("appending verification failed", "attempt_id", attempt.ID, "error", err)
	if s.pending == nil {
		return
	}
	if err := s.pending.Save(ctx, attempt); err != nil {
		s.logger.Error("journaling verification failed", "attempt_id", attempt.ID, "error", err)
		return
	}
	s.logger.Info("verification journaled for retry", "attempt_id", attempt.ID)
}

// Pending returns the number of journaled attempts.
func (s *HistoryService) Pending(ctx context.Context) (int, error) {
	if s.pending == nil {
		return 0, nil
	}
	return s.pending.Count(ctx)
}

// Flush replays journaled attempts oldest first, deleting each once the
// backend accepts it. An attempt the backend refuses outright is dropped and
// the replay continues; any other failure stops it so order is preserved.
func (s *HistoryService) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult
	if s.pending == nil {
		return res, nil
	}

	for {
		batch, err := s.pending.ListOldest(ctx, flushBatch)
		if err != nil {
			return res, fmt.Errorf("loading journaled attempts: %w", err)
		}
		if len(batch) == 0 {
			return res, nil
		}

		for _, attempt := range batch {
			appendErr := s.log.Append(ctx, attempt)
			if appendErr != nil && !refused(appendErr) {
				res.Remaining, _ = s.pending.Count(ctx)
				return res, fmt.Errorf("replaying attempt %s: %w", attempt.ID, appendErr)
			}
			if err := s.pending.Delete(ctx, attempt.ID); err != nil {
				return res, fmt.Errorf("clearing journaled attempt %s: %w", attempt.ID, err)
			}
			if appendErr != nil {
				s.logger.Error("dropping journaled verification refused by backend",
					"attempt_id", attempt.ID,
					"bus_id", attempt.BusID,
					"status", attempt.Status,
					"error", appendErr,
				)
				res.Dropped++
				continue
			}
			res.Sent++
		}

		if len(batch) < flushBatch {
			return res, nil
		}
	}
}

// refused reports whether the backend turned an append down in a way a retry
// cannot change: a success=false answer or a 4xx other than timeout and
// throttling.
func refused(err error) bool {
	var rejected *driven.RejectedError
	if errors.As(err, &rejected) {
		return true
	}
	var te *driven.TransportError
	return errors.As(err, &te) && te.ClientError()
}
