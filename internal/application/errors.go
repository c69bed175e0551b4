package application

import "errors"

// ErrInvalidState is returned when an operation is not allowed in the
// verifier's current state.
var ErrInvalidState = errors.New("operation not allowed in current verification state")

// ErrClosed is returned by a closed verifier, and by operations whose run
// was discarded because the verifier closed underneath them.
var ErrClosed = errors.New("verification session closed")

// ErrScanTimeout is the device error recorded when no QR code was read
// before the scan deadline.
var ErrScanTimeout = errors.New("no QR code detected before the scan timed out")
