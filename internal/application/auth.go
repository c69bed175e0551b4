package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// AuthService signs conductors in and out.
type AuthService struct {
	auth    driven.ConductorAuth
	vault   *TokenVault
	session *ConductorSession
	logger  *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(auth driven.ConductorAuth, vault *TokenVault, session *ConductorSession, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{auth: auth, vault: vault, session: session, logger: logger}
}

// Login exchanges credentials for a conductor token. Any previous conductor
// token is discarded first. A rejected login is a failed Result.
func (s *AuthService) Login(ctx context.Context, conductorID, password string) (model.Result[model.Conductor], error) {
	s.vault.Remove(ctx, model.ActorConductor)
	s.session.Clear()

	res, err := s.auth.Login(ctx, conductorID, password)
	if err != nil {
		return model.Result[model.Conductor]{}, fmt.Errorf("conductor login: %w", err)
	}
	if !res.OK {
		s.logger.Info("conductor login rejected", "conductor_id", conductorID)
		return model.Fail[model.Conductor](res.MessageOr("Login failed")), nil
	}

	s.vault.Set(ctx, model.ActorConductor, res.Payload.Token)
	s.session.Begin(res.Payload.Conductor)
	s.logger.Info("conductor signed in",
		"conductor_id", res.Payload.Conductor.ConductorID,
		"depot", res.Payload.Conductor.Depot,
	)
	return model.Ok(res.Payload.Conductor, res.Message), nil
}

// Logout discards the conductor token.
func (s *AuthService) Logout(ctx context.Context) {
	s.vault.Remove(ctx, model.ActorConductor)
	s.session.Clear()
	s.logger.Info("conductor signed out")
}

// Restore resumes a session from a stored token. It returns ok=false when
// there is no token or the backend no longer accepts it; in the latter case
// the token is discarded. Network failures leave the token in place.
func (s *AuthService) Restore(ctx context.Context) (model.Conductor, bool, error) {
	if !s.vault.Exists(ctx, model.ActorConductor) {
		return model.Conductor{}, false, nil
	}

	res, err := s.auth.Profile(ctx)
	if errors.Is(err, driven.ErrSessionExpired) {
		return model.Conductor{}, false, nil
	}
	if err != nil {
		return model.Conductor{}, false, fmt.Errorf("restoring conductor session: %w", err)
	}
	if !res.OK {
		s.logger.Info("stored conductor token rejected", "message", res.Message)
		s.Logout(ctx)
		return model.Conductor{}, false, nil
	}

	s.session.Begin(res.Payload)
	return res.Payload, true, nil
}
