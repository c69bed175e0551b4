// Package httphandler is the kiosk REST API: it drives verification sessions
// on the terminal's desk and exposes the bus's history.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// Flusher replays the pending verification journal.
type Flusher interface {
	FlushNow(ctx context.Context) (application.FlushResult, error)
}

// Handler is the HTTP driving adapter that serves the kiosk API.
type Handler struct {
	desk    *application.Desk
	history *application.HistoryService
	flusher Flusher
	session *application.ConductorSession
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. flusher may be
// nil, in which case flushes run on the request goroutine.
func NewHandler(
	desk *application.Desk,
	history *application.HistoryService,
	flusher Flusher,
	session *application.ConductorSession,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		desk:    desk,
		history: history,
		flusher: flusher,
		session: session,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, recovery and CSRF middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("POST /api/v1/verification", h.OpenVerification)
	mux.HandleFunc("GET /api/v1/verification", h.GetVerification)
	mux.HandleFunc("POST /api/v1/verification/capture", h.CaptureFace)
	mux.HandleFunc("POST /api/v1/verification/reset", h.ResetVerification)
	mux.HandleFunc("DELETE /api/v1/verification", h.CloseVerification)
	mux.HandleFunc("GET /api/v1/history", h.ListHistory)
	mux.HandleFunc("POST /api/v1/history/flush", h.FlushHistory)

	// Recovery inside logging so panics are caught before logging.
	wrapped := csrfMiddleware(mux)
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Session reports the signed-in conductor and the pending journal size.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{}
	if c, ok := h.session.Profile(); ok {
		resp.LoggedIn = true
		resp.Conductor = toConductorResponse(c)
	}

	pending, err := h.history.Pending(r.Context())
	if err != nil {
		h.logger.Error("failed to count pending verifications", "error", err)
	}
	resp.Pending = pending

	writeJSON(w, http.StatusOK, resp)
}

// OpenVerification starts a new session in the requested mode, closing any
// open one.
func (h *Handler) OpenVerification(w http.ResponseWriter, r *http.Request) {
	if !h.session.Active() {
		writeError(w, http.StatusUnauthorized, "conductor sign-in required")
		return
	}

	mode := model.Mode(r.URL.Query().Get("mode"))
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be face or qr")
		return
	}

	v, err := h.desk.Open(r.Context(), mode)
	if err != nil {
		h.writeAppError(w, "open verification", err)
		return
	}

	writeJSON(w, http.StatusCreated, toVerificationResponse(v.Snapshot()))
}

// GetVerification returns the open session's state.
func (h *Handler) GetVerification(w http.ResponseWriter, _ *http.Request) {
	v, ok := h.desk.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no open verification")
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(v.Snapshot()))
}

// CaptureFace captures and verifies a face on the open session.
func (h *Handler) CaptureFace(w http.ResponseWriter, r *http.Request) {
	v, ok := h.desk.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no open verification")
		return
	}

	if _, err := v.CaptureFace(r.Context()); err != nil {
		h.writeAppError(w, "capture face", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(v.Snapshot()))
}

// ResetVerification starts the next attempt on a settled session.
func (h *Handler) ResetVerification(w http.ResponseWriter, r *http.Request) {
	v, ok := h.desk.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no open verification")
		return
	}

	if err := v.Reset(r.Context()); err != nil {
		h.writeAppError(w, "reset verification", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationResponse(v.Snapshot()))
}

// CloseVerification closes the open session, if any.
func (h *Handler) CloseVerification(w http.ResponseWriter, _ *http.Request) {
	if err := h.desk.Close(); err != nil {
		h.writeAppError(w, "close verification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHistory returns the desk bus's history for ?date=YYYY-MM-DD, today by default.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	attempts, err := h.history.List(r.Context(), h.desk.Bus().ID, date)
	if err != nil {
		h.writeAppError(w, "list history", err)
		return
	}

	resp := make([]AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, toAttemptResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// FlushHistory replays verifications the backend has not accepted yet.
func (h *Handler) FlushHistory(w http.ResponseWriter, r *http.Request) {
	var (
		res application.FlushResult
		err error
	)
	if h.flusher != nil {
		res, err = h.flusher.FlushNow(r.Context())
	} else {
		res, err = h.history.Flush(r.Context())
	}
	if err != nil {
		h.writeAppError(w, "flush history", err)
		return
	}
	writeJSON(w, http.StatusOK, FlushResponse{Sent: res.Sent, Dropped: res.Dropped, Remaining: res.Remaining})
}

// writeAppError maps application and port errors to HTTP statuses.
func (h *Handler) writeAppError(w http.ResponseWriter, op string, err error) {
	var (
		transport *driven.TransportError
		rejected  *driven.RejectedError
	)

	switch {
	case errors.Is(err, driven.ErrDeviceUnavailable), errors.Is(err, application.ErrScanTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, driven.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, application.ErrInvalidState), errors.Is(err, application.ErrClosed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &transport), errors.As(err, &rejected):
		h.logger.Warn("backend failure", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
