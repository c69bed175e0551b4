package application

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// startScanLocked launches the QR scan loop for run gen. Caller holds mu.
func (v *Verifier) startScanLocked(ctx context.Context, dev driven.CaptureDevice, gen uint64) {
	base := context.WithoutCancel(ctx)
	scanCtx, cancel := context.WithCancel(base)
	if v.deps.ScanTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(base, v.deps.ScanTimeout)
	}
	done := make(chan struct{})
	v.scanCancel = cancel
	v.scanDone = done

	go func() {
		defer close(done)
		v.scan(scanCtx, base, dev, gen)
	}()
}

// scan samples frames at the configured rate until a code is decoded, the
// device fails, or the scan is canceled.
func (v *Verifier) scan(ctx, base context.Context, dev driven.CaptureDevice, gen uint64) {
	limiter := rate.NewLimiter(rate.Limit(v.deps.ScanRate), 1)
	frames := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the next token lies past the deadline.
			<-ctx.Done()
			v.scanStopped(ctx, gen, frames)
			return
		}

		frame, err := dev.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				v.scanStopped(ctx, gen, frames)
				return
			}
			v.scanFailed(gen, err)
			return
		}
		frames++

		payload, found, err := v.deps.Decoder.Decode(frame)
		if err != nil {
			v.deps.Logger.Debug("undecodable frame", "error", err)
			continue
		}
		if !found {
			continue
		}

		v.scanDecoded(base, gen, payload, frames)
		return
	}
}

// scanDecoded hands a decoded payload to processing. The device is released
// before processing starts.
func (v *Verifier) scanDecoded(ctx context.Context, gen uint64, payload string, frames int) {
	v.mu.Lock()
	if v.gen != gen || v.state != model.StateCapturing {
		v.mu.Unlock()
		return
	}
	v.releaseDeviceLocked()
	v.stopScanLocked()
	v.state = model.StateProcessing
	v.publish()
	v.mu.Unlock()

	v.deps.Logger.Debug("qr code decoded", "bus_id", v.bus.ID, "frames", frames)

	go func() {
		_, err := v.process(ctx, gen, func(context.Context) (string, string, error) {
			subjectID, ok := ParseQRPayload(payload)
			if !ok {
				return "", MsgNoPassengerID, nil
			}
			return subjectID, "", nil
		})
		if err != nil && !errors.Is(err, ErrClosed) {
			v.deps.Logger.Warn("qr verification ended", "bus_id", v.bus.ID, "error", err)
		}
	}()
}

// scanFailed records a device failure; the operator may restart capture.
func (v *Verifier) scanFailed(gen uint64, err error) {
	if !errors.Is(err, driven.ErrDeviceUnavailable) {
		err = fmt.Errorf("%w: %w", driven.ErrDeviceUnavailable, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.releaseDeviceLocked()
	v.stopScanLocked()
	v.deviceErr = err
	v.publish()
	v.deps.Logger.Warn("qr scan camera failure", "bus_id", v.bus.ID, "error", err)
}

// scanStopped handles cancellation. A deadline becomes a device error so the
// operator can restart; an explicit cancel came from Close and needs nothing.
func (v *Verifier) scanStopped(ctx context.Context, gen uint64, frames int) {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.releaseDeviceLocked()
	v.stopScanLocked()
	v.deviceErr = ErrScanTimeout
	v.publish()
	v.deps.Logger.Info("qr scan timed out", "bus_id", v.bus.ID, "frames", frames)
}

// stopScanLocked cancels the scan context without waiting for the loop.
// Caller holds mu.
func (v *Verifier) stopScanLocked() {
	if v.scanCancel != nil {
		v.scanCancel()
	}
	v.scanCancel, v.scanDone = nil, nil
}
