package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// RetryTier classifies how hard the backend has been failing.
type RetryTier int

const (
	// TierHealthy means the last flush succeeded. Retries at the base interval.
	TierHealthy RetryTier = iota
	// TierDegraded means 1-2 consecutive failures. Retries at 2x the interval.
	TierDegraded
	// TierFailing means 3-5 consecutive failures. Retries at 4x the interval.
	TierFailing
	// TierOffline means 6+ consecutive failures. Retries at 8x the interval.
	TierOffline
)

// String returns a human-readable name for the tier.
func (t RetryTier) String() string {
	switch t {
	case TierHealthy:
		return "healthy"
	case TierDegraded:
		return "degraded"
	case TierFailing:
		return "failing"
	case TierOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// classifyFailures maps a consecutive failure count to a tier.
func classifyFailures(failures int) RetryTier {
	switch {
	case failures <= 0:
		return TierHealthy
	case failures < 3:
		return TierDegraded
	case failures < 6:
		return TierFailing
	default:
		return TierOffline
	}
}

// tierInterval scales the base interval for a tier.
func tierInterval(base time.Duration, tier RetryTier) time.Duration {
	switch tier {
	case TierDegraded:
		return 2 * base
	case TierFailing:
		return 4 * base
	case TierOffline:
		return 8 * base
	default:
		return base
	}
}

// flushRequest represents a manual flush trigger.
type flushRequest struct {
	done chan flushReply
}

type flushReply struct {
	result FlushResult
	err    error
}

// RetryService periodically replays the pending verification journal.
type RetryService struct {
	history  *HistoryService
	interval time.Duration
	flushCh  chan flushRequest
	logger   *slog.Logger
}

// NewRetryService creates a RetryService flushing every interval while the
// backend is healthy.
func NewRetryService(history *HistoryService, interval time.Duration, logger *slog.Logger) *RetryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryService{
		history:  history,
		interval: interval,
		flushCh:  make(chan flushRequest),
		logger:   logger,
	}
}

// Start runs an immediate flush, then flushes on the tiered interval. It
// also serves manual flush requests. Start blocks until ctx is canceled.
func (s *RetryService) Start(ctx context.Context) {
	failures := 0
	failures = s.cycle(ctx, failures)

	timer := time.NewTimer(tierInterval(s.interval, classifyFailures(failures)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry service stopped")
			return
		case <-timer.C:
			failures = s.cycle(ctx, failures)
			timer.Reset(tierInterval(s.interval, classifyFailures(failures)))
		case req := <-s.flushCh:
			res, err := s.history.Flush(ctx)
			if err == nil {
				failures = 0
			}
			req.done <- flushReply{result: res, err: err}
		}
	}
}

// cycle runs one flush and returns the updated failure count.
func (s *RetryService) cycle(ctx context.Context, failures int) int {
	res, err := s.history.Flush(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return failures
		}
		failures++
		tier := classifyFailures(failures)
		level := slog.LevelWarn
		if errors.Is(err, driven.ErrSessionExpired) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "pending flush failed",
			"error", err,
			"sent", res.Sent,
			"dropped", res.Dropped,
			"remaining", res.Remaining,
			"failures", failures,
			"tier", tier.String(),
			"next_in", tierInterval(s.interval, tier),
		)
		return failures
	}

	if res.Sent > 0 || res.Dropped > 0 {
		s.logger.Info("pending verifications flushed", "sent", res.Sent, "dropped", res.Dropped)
	}
	return 0
}

// FlushNow triggers a flush outside the schedule and waits for its result.
func (s *RetryService) FlushNow(ctx context.Context) (FlushResult, error) {
	req := flushRequest{done: make(chan flushReply, 1)}

	select {
	case s.flushCh <- req:
	case <-ctx.Done():
		return FlushResult{}, ctx.Err()
	}

	select {
	case reply := <-req.done:
		return reply.result, reply.err
	case <-ctx.Done():
		return FlushResult{}, ctx.Err()
	}
}
