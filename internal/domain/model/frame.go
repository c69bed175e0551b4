package model

import "time"

// Frame is a still image captured from a camera. It lives only for the
// duration of a single verification attempt and is never persisted.
type Frame struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}
