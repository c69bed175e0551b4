package application

import (
	"sync"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// ConductorSession holds the signed-in conductor's profile and the
// "session ended" signal. It is safe for concurrent use.
type ConductorSession struct {
	mu      sync.RWMutex
	profile *model.Conductor
	ended   chan struct{}
	fired   bool
}

// NewConductorSession creates a signed-out session.
func NewConductorSession() *ConductorSession {
	return &ConductorSession{ended: make(chan struct{})}
}

// Begin records a fresh login. It re-arms the ended signal if a previous
// login already fired it.
func (s *ConductorSession) Begin(profile model.Conductor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &profile
	if s.fired {
		s.ended = make(chan struct{})
		s.fired = false
	}
}

// Profile returns the current conductor, or ok=false when signed out.
func (s *ConductorSession) Profile() (model.Conductor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return model.Conductor{}, false
	}
	return *s.profile, true
}

// Active reports whether a conductor is signed in.
func (s *ConductorSession) Active() bool {
	_, ok := s.Profile()
	return ok
}

// Clear signs the conductor out without firing the ended signal.
func (s *ConductorSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
}

// End signs the conductor out because the backend rejected the session. The
// ended signal fires at most once per login.
func (s *ConductorSession) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	if !s.fired {
		s.fired = true
		close(s.ended)
	}
}

// Ended returns a channel closed when the current login's session ends.
func (s *ConductorSession) Ended() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// SessionEndedHandler returns the callback for backend clients. Only the
// conductor kind affects this session.
func (s *ConductorSession) SessionEndedHandler() func(model.ActorKind) {
	return func(kind model.ActorKind) {
		if kind == model.ActorConductor {
			s.End()
		}
	}
}
