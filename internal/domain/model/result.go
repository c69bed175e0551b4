package model

// Result is the outcome of a backend call that reached the server and carried
// an application-level answer. OK mirrors the response's success flag; when OK
// is false, Message carries the server's explanation (possibly empty).
// Transport failures are reported as errors, never as a Result.
type Result[T any] struct {
	OK      bool
	Payload T
	Message string
}

// Ok builds a successful Result.
func Ok[T any](payload T, message string) Result[T] {
	return Result[T]{OK: true, Payload: payload, Message: message}
}

// Fail builds a failed Result with the server-provided message.
func Fail[T any](message string) Result[T] {
	return Result[T]{Message: message}
}

// MessageOr returns the result message, or fallback when the server sent none.
func (r Result[T]) MessageOr(fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}
