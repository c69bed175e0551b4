package driven

import (
	"context"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// PendingStore journals verification attempts that could not be appended to
// the backend history so they can be replayed later.
type PendingStore interface {
	// Save journals an attempt. Saving an attempt ID twice keeps one entry.
	Save(ctx context.Context, attempt model.VerificationAttempt) error

	// ListOldest returns up to limit journaled attempts, oldest first.
	ListOldest(ctx context.Context, limit int) ([]model.VerificationAttempt, error)

	// Delete removes a journaled attempt by ID.
	Delete(ctx context.Context, id string) error

	// Count returns the number of journaled attempts.
	Count(ctx context.Context) (int, error)
}
