package driven

import (
	"context"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// TokenStore defines the driven port for durable bearer-token persistence.
// Each actor kind owns exactly one slot.
type TokenStore interface {
	// Get returns the token stored for kind. Returns ("", nil) if none is stored.
	Get(ctx context.Context, kind model.ActorKind) (string, error)

	// Set stores or replaces the token for kind.
	Set(ctx context.Context, kind model.ActorKind, token string) error

	// Delete removes the token for kind. Deleting an absent token is not an error.
	Delete(ctx context.Context, kind model.ActorKind) error
}
