package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// BusResponse is the JSON representation of the desk's bus.
type BusResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// PassResponse is the JSON representation of a checked pass.
type PassResponse struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name"`
	PassID    string `json:"pass_id"`
	PassType  string `json:"pass_type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Validity  string `json:"validity"`
	Photo     string `json:"photo,omitempty"`
}

// OutcomeResponse is the JSON representation of a settled verification.
type OutcomeResponse struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	SubjectID    string        `json:"subject_id,omitempty"`
	RouteMatches bool          `json:"route_matches"`
	Pass         *PassResponse `json:"pass,omitempty"`
	AttemptID    string        `json:"attempt_id"`
}

// VerificationResponse is the JSON representation of a verification session.
type VerificationResponse struct {
	State       string           `json:"state"`
	Mode        string           `json:"mode"`
	Bus         BusResponse      `json:"bus"`
	DeviceError string           `json:"device_error,omitempty"`
	Outcome     *OutcomeResponse `json:"outcome,omitempty"`
}

// AttemptResponse is the JSON representation of a history entry.
type AttemptResponse struct {
	ID          string `json:"id"`
	BusID       string `json:"bus_id"`
	BusNumber   string `json:"bus_number"`
	Date        string `json:"date"`
	Timestamp   string `json:"timestamp"`
	Mode        string `json:"mode,omitempty"`
	SubjectID   string `json:"subject_id,omitempty"`
	SubjectName string `json:"subject_name,omitempty"`
	PassID      string `json:"pass_id,omitempty"`
	PassType    string `json:"pass_type,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Validity    string `json:"validity,omitempty"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// FlushResponse reports a replay of the pending journal.
type FlushResponse struct {
	Sent      int `json:"sent"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`
}

// ConductorResponse is the JSON representation of the signed-in conductor.
type ConductorResponse struct {
	ID          string `json:"id"`
	ConductorID string `json:"conductor_id"`
	Name        string `json:"name"`
	Depot       string `json:"depot"`
}

// SessionResponse reports whether a conductor is signed in.
type SessionResponse struct {
	LoggedIn  bool               `json:"logged_in"`
	Conductor *ConductorResponse `json:"conductor,omitempty"`
	Pending   int                `json:"pending"`
}

func toBusResponse(b model.Bus) BusResponse {
	return BusResponse{ID: b.ID, Number: b.Number, From: b.Route.From, To: b.Route.To}
}

func toPassResponse(p model.Pass) *PassResponse {
	return &PassResponse{
		SubjectID: p.SubjectID,
		Name:      p.SubjectName,
		PassID:    p.PassID,
		PassType:  p.PassType,
		From:      p.Route.From,
		To:        p.Route.To,
		Validity:  p.Validity,
		Photo:     p.PhotoRef,
	}
}

// toVerificationResponse converts a verifier snapshot to its JSON representation.
func toVerificationResponse(s application.Snapshot) VerificationResponse {
	resp := VerificationResponse{
		State:       string(s.State),
		Mode:        string(s.Mode),
		Bus:         toBusResponse(s.Bus),
		DeviceError: s.DeviceErr,
	}
	if o := s.Outcome; o != nil {
		out := &OutcomeResponse{
			Status:       string(o.Status),
			Message:      o.Message,
			SubjectID:    o.SubjectID,
			RouteMatches: o.RouteMatches,
			AttemptID:    o.Attempt.ID,
		}
		if o.Pass != nil {
			out.Pass = toPassResponse(*o.Pass)
		}
		resp.Outcome = out
	}
	return resp
}

// toAttemptResponse converts a history entry to its JSON representation.
func toAttemptResponse(a model.VerificationAttempt) AttemptResponse {
	ts := ""
	if !a.Timestamp.IsZero() {
		ts = a.Timestamp.UTC().Format(time.RFC3339)
	}
	return AttemptResponse{
		ID:          a.ID,
		BusID:       a.BusID,
		BusNumber:   a.BusNumber,
		Date:        a.Date,
		Timestamp:   ts,
		Mode:        string(a.Mode),
		SubjectID:   a.SubjectID,
		SubjectName: a.SubjectName,
		PassID:      a.PassID,
		PassType:    a.PassType,
		From:        a.Route.From,
		To:          a.Route.To,
		Validity:    a.Validity,
		Status:      string(a.Status),
		Message:     a.Message,
	}
}

func toConductorResponse(c model.Conductor) *ConductorResponse {
	return &ConductorResponse{ID: c.ID, ConductorID: c.ConductorID, Name: c.Name, Depot: c.Depot}
}
