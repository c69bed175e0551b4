package model

import "time"

// VerificationStatus is the terminal classification of a verification attempt.
type VerificationStatus string

const (
	StatusSuccess VerificationStatus = "success"
	StatusInvalid VerificationStatus = "invalid"
	StatusError   VerificationStatus = "error"
)

// Mode selects how a passenger is identified.
type Mode string

const (
	ModeFace Mode = "face"
	ModeQR   Mode = "qr"
)

// Valid reports whether m is a supported verification mode.
func (m Mode) Valid() bool {
	return m == ModeFace || m == ModeQR
}

// DateLayout is the calendar-day format used to scope history.
const DateLayout = "2006-01-02"

// DayOf formats t as a history calendar day in UTC.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// VerificationAttempt is one completed verification run. Attempts are
// immutable once created and are scoped by (BusID, Date) for retrieval.
type VerificationAttempt struct {
	// ID is a client-generated identifier used to deduplicate replays.
	ID           string
	BusID        string
	BusNumber    string
	Date         string
	Timestamp    time.Time
	Mode         Mode
	SubjectID    string
	SubjectName  string
	SubjectPhoto string
	PassID       string
	PassType     string
	Route        Route
	Validity     string
	Status       VerificationStatus
	Message      string
}
