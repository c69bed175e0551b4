package application

import (
	"context"
	"errors"
	"sync"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// Desk is a terminal's verification desk: one bus and at most one open
// Verifier. Opening a new session closes the previous one.
type Desk struct {
	bus  model.Bus
	deps VerifierDeps

	mu      sync.Mutex
	current *Verifier
}

// NewDesk creates a Desk for bus.
func NewDesk(bus model.Bus, deps VerifierDeps) *Desk {
	return &Desk{bus: bus, deps: deps}
}

// Bus returns the bus the desk verifies for.
func (d *Desk) Bus() model.Bus {
	return d.bus
}

// Open closes any previous session and starts capture on a new one. The new
// Verifier is returned even when the camera could not be acquired, so the
// caller can show the device error and retry.
func (d *Desk) Open(ctx context.Context, mode model.Mode) (*Verifier, error) {
	v, err := NewVerifier(d.bus, mode, d.deps)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	prev := d.current
	d.current = v
	d.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	if err := v.StartCapture(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		return v, err
	}
	return v, nil
}

// Current returns the open Verifier, if any.
func (d *Desk) Current() (*Verifier, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.current != nil
}

// Close closes the open Verifier.
func (d *Desk) Close() error {
	d.mu.Lock()
	v := d.current
	d.current = nil
	d.mu.Unlock()

	if v == nil {
		return nil
	}
	return v.Close()
}
