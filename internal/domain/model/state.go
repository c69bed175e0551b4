package model

// State is a verification session state.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateInvalid    State = "invalid"
	StateError      State = "error"
	StateClosed     State = "closed"
)

// Terminal reports whether s ends a verification attempt.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateInvalid || s == StateError
}

// StateFor maps a terminal status to its session state.
func StateFor(status VerificationStatus) State {
	switch status {
	case StatusSuccess:
		return StateSuccess
	case StatusInvalid:
		return StateInvalid
	default:
		return StateError
	}
}
