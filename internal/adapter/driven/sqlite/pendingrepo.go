package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PendingStore = (*PendingRepo)(nil)

// recordedAtLayout is fixed-width so recorded_at sorts lexically in time order.
const recordedAtLayout = "2006-01-02T15:04:05.000000000Z"

// PendingRepo is the SQLite journal of attempts awaiting a backend append.
type PendingRepo struct {
	db *DB
}

// NewPendingRepo creates a PendingRepo backed by the given DB.
func NewPendingRepo(db *DB) *PendingRepo {
	return &PendingRepo{db: db}
}

// pendingPayload is the stored JSON form of an attempt.
type pendingPayload struct {
	ID           string    `json:"id"`
	BusID        string    `json:"bus_id"`
	BusNumber    string    `json:"bus_number,omitempty"`
	Date         string    `json:"date"`
	Timestamp    time.Time `json:"timestamp"`
	Mode         string    `json:"mode,omitempty"`
	SubjectID    string    `json:"subject_id,omitempty"`
	SubjectName  string    `json:"subject_name,omitempty"`
	SubjectPhoto string    `json:"subject_photo,omitempty"`
	PassID       string    `json:"pass_id,omitempty"`
	PassType     string    `json:"pass_type,omitempty"`
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	Validity     string    `json:"validity,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
}

// Save journals an attempt. A second Save with the same ID is ignored.
func (r *PendingRepo) Save(ctx context.Context, a model.VerificationAttempt) error {
	if a.ID == "" {
		return fmt.Errorf("save pending attempt: missing id")
	}

	payload, err := json.Marshal(toPendingPayload(a))
	if err != nil {
		return fmt.Errorf("marshal pending attempt %s: %w", a.ID, err)
	}

	const query = `INSERT OR IGNORE INTO pending_attempts (id, bus_id, attempt_day, recorded_at, payload) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		a.ID, a.BusID, a.Date, a.Timestamp.UTC().Format(recordedAtLayout), string(payload))
	if err != nil {
		return fmt.Errorf("save pending attempt %s: %w", a.ID, err)
	}
	return nil
}

// ListOldest returns up to limit journaled attempts ordered by attempt time.
func (r *PendingRepo) ListOldest(ctx context.Context, limit int) ([]model.VerificationAttempt, error) {
	const query = `SELECT payload FROM pending_attempts ORDER BY recorded_at, id LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.VerificationAttempt
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan pending attempt: %w", err)
		}

		var p pendingPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("unmarshal pending attempt: %w", err)
		}
		attempts = append(attempts, p.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending attempts: %w", err)
	}

	return attempts, nil
}

// Delete removes a journaled attempt. Deleting an unknown ID is not an error.
func (r *PendingRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM pending_attempts WHERE id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete pending attempt %s: %w", id, err)
	}
	return nil
}

// Count returns the number of journaled attempts.
func (r *PendingRepo) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM pending_attempts`
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending attempts: %w", err)
	}
	return n, nil
}

func toPendingPayload(a model.VerificationAttempt) pendingPayload {
	return pendingPayload{
		ID:           a.ID,
		BusID:        a.BusID,
		BusNumber:    a.BusNumber,
		Date:         a.Date,
		Timestamp:    a.Timestamp.UTC(),
		Mode:         string(a.Mode),
		SubjectID:    a.SubjectID,
		SubjectName:  a.SubjectName,
		SubjectPhoto: a.SubjectPhoto,
		PassID:       a.PassID,
		PassType:     a.PassType,
		From:         a.Route.From,
		To:           a.Route.To,
		Validity:     a.Validity,
		Status:       string(a.Status),
		Message:      a.Message,
	}
}

func (p pendingPayload) toModel() model.VerificationAttempt {
	return model.VerificationAttempt{
		ID:           p.ID,
		BusID:        p.BusID,
		BusNumber:    p.BusNumber,
		Date:         p.Date,
		Timestamp:    p.Timestamp,
		Mode:         model.Mode(p.Mode),
		SubjectID:    p.SubjectID,
		SubjectName:  p.SubjectName,
		SubjectPhoto: p.SubjectPhoto,
		PassID:       p.PassID,
		PassType:     p.PassType,
		Route:        model.Route{From: p.From, To: p.To},
		Validity:     p.Validity,
		Status:       model.VerificationStatus(p.Status),
		Message:      p.Message,
	}
}
