package driven

import (
	"context"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// FaceRecognizer resolves a captured face to a subject identifier.
type FaceRecognizer interface {
	// RecognizeFace submits the frame for identity recognition. A failed Result
	// means no identity matched; an error means the request itself failed.
	RecognizeFace(ctx context.Context, frame model.Frame) (model.Result[string], error)
}

// PassChecker checks a subject's pass against a bus.
type PassChecker interface {
	// CheckPass returns an OK Result carrying the pass when it is valid for the bus.
	CheckPass(ctx context.Context, subjectID string, bus model.Bus) (model.Result[model.Pass], error)
}

// HistoryLog is the backend-persisted, append-only verification history.
type HistoryLog interface {
	// List returns attempts for a bus and calendar day in backend order.
	List(ctx context.Context, busID, date string) ([]model.VerificationAttempt, error)

	// Append persists one attempt.
	Append(ctx context.Context, attempt model.VerificationAttempt) error
}

// ConductorAuth covers the conductor authentication endpoints.
type ConductorAuth interface {
	Login(ctx context.Context, conductorID, password string) (model.Result[model.ConductorLogin], error)
	Profile(ctx context.Context) (model.Result[model.Conductor], error)
}

// BusDirectory lists buses a conductor can work on.
type BusDirectory interface {
	ListDepotBuses(ctx context.Context, depotID string) ([]model.Bus, error)
}

// UserAccount covers the end-user endpoints reachable from a terminal.
type UserAccount interface {
	Login(ctx context.Context, email, password string) (model.Result[model.UserLogin], error)
	PassInfo(ctx context.Context) (model.Result[model.UserPassInfo], error)
}
