package driven

import (
	"context"

	"github.com/ericfisherdev/passverify/internal/domain/model"
)

// DeviceOpener acquires a capture device.
type DeviceOpener interface {
	// Open acquires the device. Failures should wrap ErrDeviceUnavailable.
	Open(ctx context.Context) (CaptureDevice, error)
}

// CaptureDevice is an acquired camera. Close must be safe to call while a
// Capture is in flight and must make that Capture return promptly.
type CaptureDevice interface {
	Capture(ctx context.Context) (model.Frame, error)
	Close() error
}

// QRDecoder extracts a QR payload from a frame.
type QRDecoder interface {
	// Decode returns found=false with a nil error when the frame holds no
	// readable code. Errors are reserved for frames that cannot be decoded as images.
	Decode(frame model.Frame) (payload string, found bool, err error)
}
