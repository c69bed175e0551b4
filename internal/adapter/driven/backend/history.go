package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

const (
	historyPath      = "/api/conductor/verification-history"
	storeHistoryPath = "/api/conductor/store-verification"
)

// attemptWire is the backend's verification record. Older records spell the
// route endpoints fromLocation/toLocation and the outcome verified/failed.
// Append writes both route spellings.
type attemptWire struct {
	ID           string `json:"_id,omitempty"`
	AttemptID    string `json:"attemptId,omitempty"`
	BusID        string `json:"busId"`
	BusNumber    string `json:"busNumber,omitempty"`
	Date         string `json:"date"`
	Timestamp    string `json:"timestamp"`
	Mode         string `json:"mode,omitempty"`
	UserID       string `json:"userId,omitempty"`
	UserName     string `json:"userName,omitempty"`
	UserPhoto    string `json:"userPhoto,omitempty"`
	PassID       string `json:"passId,omitempty"`
	PassType     string `json:"passType,omitempty"`
	Validity     string `json:"validity,omitempty"`
	From         string `json:"From,omitempty"`
	To           string `json:"To,omitempty"`
	FromLocation string `json:"fromLocation,omitempty"`
	ToLocation   string `json:"toLocation,omitempty"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

type historyResponse struct {
	envelope
	History []attemptWire `json:"history"`
}

// List returns the bus's attempts for date in the order the backend sent them.
func (c *Client) List(ctx context.Context, busID, date string) ([]model.VerificationAttempt, error) {
	const op = "list history"

	q := url.Values{}
	q.Set("busId", busID)
	q.Set("date", date)

	var out historyResponse
	if err := c.doJSON(ctx, op, http.MethodGet, historyPath+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if !out.ok() {
		return nil, &driven.RejectedError{Op: op, Message: out.message()}
	}

	attempts := make([]model.VerificationAttempt, 0, len(out.History))
	for _, w := range out.History {
		attempts = append(attempts, w.toModel())
	}
	return attempts, nil
}

// Append stores one attempt in the backend history.
func (c *Client) Append(ctx context.Context, attempt model.VerificationAttempt) error {
	const op = "append history"

	var out envelope
	if err := c.doJSON(ctx, op, http.MethodPost, storeHistoryPath, toWire(attempt), &out); err != nil {
		return err
	}
	if !out.ok() {
		return &driven.RejectedError{Op: op, Message: out.message()}
	}
	return nil
}

func toWire(a model.VerificationAttempt) attemptWire {
	return attemptWire{
		AttemptID:    a.ID,
		BusID:        a.BusID,
		BusNumber:    a.BusNumber,
		Date:         a.Date,
		Timestamp:    a.Timestamp.UTC().Format(time.RFC3339Nano),
		Mode:         string(a.Mode),
		UserID:       a.SubjectID,
		UserName:     a.SubjectName,
		UserPhoto:    a.SubjectPhoto,
		PassID:       a.PassID,
		PassType:     a.PassType,
		Validity:     a.Validity,
		From:         a.Route.From,
		To:           a.Route.To,
		FromLocation: a.Route.From,
		ToLocation:   a.Route.To,
		Status:       string(a.Status),
		Message:      a.Message,
	}
}

func (w attemptWire) toModel() model.VerificationAttempt {
	id := w.AttemptID
	if id == "" {
		id = w.ID
	}
	route := model.Route{From: w.From, To: w.To}
	if route.From == "" {
		route.From = w.FromLocation
	}
	if route.To == "" {
		route.To = w.ToLocation
	}

	return model.VerificationAttempt{
		ID:           id,
		BusID:        w.BusID,
		BusNumber:    w.BusNumber,
		Date:         w.Date,
		Timestamp:    parseTimestamp(w.Timestamp),
		Mode:         model.Mode(w.Mode),
		SubjectID:    w.UserID,
		SubjectName:  w.UserName,
		SubjectPhoto: w.UserPhoto,
		PassID:       w.PassID,
		PassType:     w.PassType,
		Route:        route,
		Validity:     w.Validity,
		Status:       parseStatus(w.Status),
		Message:      w.Message,
	}
}

func parseStatus(s string) model.VerificationStatus {
	switch strings.ToLower(s) {
	case "verified", "success":
		return model.StatusSuccess
	case "failed", "invalid":
		return model.StatusInvalid
	case "error":
		return model.StatusError
	}
	return model.VerificationStatus(s)
}

// timestampLayouts covers ISO timestamps and the HTTP date format the backend
// serializes datetimes with.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
}

// parseTimestamp returns the zero time when s matches no known layout.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
