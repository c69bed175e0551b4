package driven

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable is returned when a capture device cannot be acquired
// or stops producing frames. It is recoverable: the operator may retry.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrSessionExpired is returned when the backend rejected the credentials and
// the single refresh attempt did not recover the session. The token has been
// cleared by the time callers see it.
var ErrSessionExpired = errors.New("session expired: sign in again")

// ErrEncryptionKeyInvalid is returned when the configured token encryption key
// is not a 32-byte AES-256 key.
var ErrEncryptionKeyInvalid = errors.New("token encryption key must be 32 bytes")

// TransportError describes a request that failed below the application
// protocol: a network failure or a non-2xx response. Message carries the
// server's message when the response body had one, else the network error text.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error

	// Declined is set when a non-2xx body was an envelope with success=false.
	Declined bool
}

func (e *TransportError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClientError reports a 4xx answer that repeating the request will not change.
// Timeouts and throttling are excluded.
func (e *TransportError) ClientError() bool {
	switch e.Status {
	case 408, 429:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// RejectedError is returned when the backend answered with success=false on
// an endpoint that has no Result-typed contract.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return e.Op + ": rejected by server"
	}
	return e.Op + ": " + e.Message
}
