// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// Messages used when the backend gives no explanation of its own.
const (
	MsgFaceNotRecognized = "Face not recognized"
	MsgPassNotValid      = "Pass not valid for this bus"
	MsgNoPassengerID     = "QR code does not contain a passenger id"
	MsgPassVerified      = "Pass verified successfully"
)

const (
	defaultScanRate    = 10
	defaultScanTimeout = 60 * time.Second
)

// AttemptRecorder persists completed verification attempts.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt model.VerificationAttempt)
}

// VerifierDeps are the collaborators shared by every Verifier.
type VerifierDeps struct {
	Opener   driven.DeviceOpener
	Faces    driven.FaceRecognizer
	Passes   driven.PassChecker
	Decoder  driven.QRDecoder
	Recorder AttemptRecorder
	Logger   *slog.Logger

	// ScanRate is the QR sampling rate in frames per second.
	ScanRate float64
	// ScanTimeout bounds one QR scan. Zero means the default; negative disables it.
	ScanTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

func (d VerifierDeps) withDefaults() VerifierDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ScanRate <= 0 {
		d.ScanRate = defaultScanRate
	}
	if d.ScanTimeout == 0 {
		d.ScanTimeout = defaultScanTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Outcome is the settled result of one verification run.
type Outcome struct {
	Status    model.VerificationStatus
	Message   string
	SubjectID string
	Pass      *model.Pass
	// RouteMatches is advisory and only computed for face verification.
	RouteMatches bool
	Attempt      model.VerificationAttempt
}

// Snapshot is a point-in-time view of a Verifier.
type Snapshot struct {
	State     model.State
	Mode      model.Mode
	Bus       model.Bus
	DeviceErr string
	Outcome   *Outcome
}

// Settled reports whether the verifier is waiting on the operator: a
// terminal outcome, a device error, or closed.
func (s Snapshot) Settled() bool {
	return s.State.Terminal() || s.State == model.StateClosed || s.DeviceErr != ""
}

// Verifier runs verification attempts for one bus in one mode. It owns the
// capture device while capturing and releases it exactly once on every exit
// from that state.
type Verifier struct {
	bus  model.Bus
	mode model.Mode
	deps VerifierDeps

	mu        sync.Mutex
	state     model.State
	device    driven.CaptureDevice
	opening   bool
	capturing bool // a face capture is in flight
	deviceErr error
	outcome   *Outcome
	// gen changes whenever a run is started or abandoned; results carrying
	// a stale gen are discarded.
	gen        uint64
	scanCancel context.CancelFunc
	scanDone   chan struct{}
	changed    chan struct{}
}

// NewVerifier creates an idle Verifier.
func NewVerifier(bus model.Bus, mode model.Mode, deps VerifierDeps) (*Verifier, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown verification mode %q", mode)
	}
	if bus.ID == "" {
		return nil, errors.New("bus id is required")
	}
	return &Verifier{
		bus:     bus,
		mode:    mode,
		deps:    deps.withDefaults(),
		state:   model.StateIdle,
		changed: make(chan struct{}),
	}, nil
}

// Mode returns the verifier's mode.
func (v *Verifier) Mode() model.Mode {
	return v.mode
}

// Snapshot returns the current state.
func (v *Verifier) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *Verifier) snapshotLocked() Snapshot {
	s := Snapshot{State: v.state, Mode: v.mode, Bus: v.bus}
	if v.deviceErr != nil {
		s.DeviceErr = v.deviceErr.Error()
	}
	if v.outcome != nil {
		o := *v.outcome
		s.Outcome = &o
	}
	return s
}

// publish wakes WaitSettled callers. Caller holds mu.
func (v *Verifier) publish() {
	close(v.changed)
	v.changed = make(chan struct{})
}

// StartCapture acquires the capture device and enters capturing. It is
// allowed from idle and, to retry, from capturing after a device error. In
// QR mode it also starts scanning.
func (v *Verifier) StartCapture(ctx context.Context) error {
	v.mu.Lock()
	switch {
	case v.state == model.StateClosed:
		v.mu.Unlock()
		return ErrClosed
	case v.state == model.StateIdle:
	case v.state == model.StateCapturing && v.device == nil && !v.opening:
	default:
		v.mu.Unlock()
		return fmt.Errorf("start capture in state %s: %w", v.state, ErrInvalidState)
	}
	v.state = model.StateCapturing
	v.deviceErr = nil
	v.outcome = nil
	v.opening = true
	v.gen++
	gen := v.gen
	v.publish()
	v.mu.Unlock()

	dev, err := v.deps.Opener.Open(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		if dev != nil {
			_ = dev.Close()
		}
		return ErrClosed
	}
	v.opening = false

	if err != nil {
		if !errors.Is(err, driven.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", driven.ErrDeviceUnavailable, err)
		}
		v.deviceErr = err
		v.publish()
		v.deps.Logger.Warn("camera unavailable", "bus_id", v.bus.ID, "mode", v.mode, "error", err)
		return fmt.Errorf("acquiring camera: %w", err)
	}

	v.device = dev
	v.publish()
	v.deps.Logger.Debug("camera acquired", "bus_id", v.bus.ID, "mode", v.mode)

	if v.mode == model.ModeQR {
		v.startScanLocked(ctx, dev, gen)
	}
	return nil
}

// CaptureFace takes one frame, releases the camera and runs the face
// verification to completion.
func (v *Verifier) CaptureFace(ctx context.Context) (Outcome, error) {
	v.mu.Lock()
	if v.state == model.StateClosed {
		v.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if v.mode != model.ModeFace {
		v.mu.Unlock()
		return Outcome{}, fmt.Errorf("face capture in %s mode: %w", v.mode, ErrInvalidState)
	}
	if v.state != model.StateCapturing || v.device == nil || v.capturing {
		v.mu.Unlock()
		return Outcome{}, fmt.Errorf("face capture in state %s: %w", v.state, ErrInvalidState)
	}
	dev := v.device
	gen := v.gen
	v.capturing = true
	v.mu.Unlock()

	frame, err := dev.Capture(ctx)
	if err == nil && frame.Empty() {
		err = errors.New("camera returned an empty frame")
	}

	v.mu.Lock()
	v.capturing = false
	if v.gen != gen {
		v.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if err != nil {
		if !errors.Is(err, driven.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", driven.ErrDeviceUnavailable, err)
		}
		v.releaseDeviceLocked()
		v.deviceErr = err
		v.publish()
		v.mu.Unlock()
		v.deps.Logger.Warn("face capture failed", "bus_id", v.bus.ID, "error", err)
		return Outcome{}, fmt.Errorf("capturing face: %w", err)
	}
	v.releaseDeviceLocked()
	v.state = model.StateProcessing
	v.publish()
	v.mu.Unlock()

	return v.process(ctx, gen, func(ctx context.Context) (string, string, error) {
		res, err := v.deps.Faces.RecognizeFace(ctx, frame)
		if err != nil {
			return "", "", err
		}
		if !res.OK {
			return "", res.MessageOr(MsgFaceNotRecognized), nil
		}
		return res.Payload, "", nil
	})
}

// Reset returns a settled verifier to idle and starts a new capture.
func (v *Verifier) Reset(ctx context.Context) error {
	v.mu.Lock()
	if v.state == model.StateClosed {
		v.mu.Unlock()
		return ErrClosed
	}
	if !v.state.Terminal() {
		state := v.state
		v.mu.Unlock()
		return fmt.Errorf("reset in state %s: %w", state, ErrInvalidState)
	}
	v.state = model.StateIdle
	v.outcome = nil
	v.deviceErr = nil
	v.publish()
	v.mu.Unlock()

	return v.StartCapture(ctx)
}

// Close tears the verifier down from any state. The camera is released and
// the scanner stopped before Close returns; a run still processing is
// discarded and records nothing.
func (v *Verifier) Close() error {
	v.mu.Lock()
	if v.state == model.StateClosed {
		v.mu.Unlock()
		return nil
	}
	v.gen++
	v.state = model.StateClosed
	v.opening = false
	v.releaseDeviceLocked()
	cancel, done := v.scanCancel, v.scanDone
	v.scanCancel, v.scanDone = nil, nil
	v.publish()
	v.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	v.deps.Logger.Debug("verification closed", "bus_id", v.bus.ID, "mode", v.mode)
	return nil
}

// WaitSettled blocks until the verifier is settled or ctx is done.
func (v *Verifier) WaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		v.mu.Lock()
		snap := v.snapshotLocked()
		changed := v.changed
		v.mu.Unlock()

		if snap.Settled() {
			return snap, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// releaseDeviceLocked closes the held device once. Caller holds mu.
func (v *Verifier) releaseDeviceLocked() {
	if v.device == nil {
		return
	}
	if err := v.device.Close(); err != nil {
		v.deps.Logger.Warn("releasing camera", "error", err)
	}
	v.device = nil
}

// identifyFunc resolves the subject of a run. A non-empty rejection means
// the subject could not be identified; err is a remote failure.
type identifyFunc func(ctx context.Context) (subjectID, rejection string, err error)

// process runs identification and the pass check for the run gen and settles it.
func (v *Verifier) process(ctx context.Context, gen uint64, identify identifyFunc) (Outcome, error) {
	outcome, err := v.evaluate(ctx, identify)
	if errors.Is(err, driven.ErrSessionExpired) {
		v.expire(gen)
		return Outcome{}, err
	}
	return v.settle(ctx, gen, outcome)
}

// evaluate performs the remote calls sequentially. Only ErrSessionExpired is
// returned as an error; other failures become an error outcome.
func (v *Verifier) evaluate(ctx context.Context, identify identifyFunc) (Outcome, error) {
	subjectID, rejection, err := identify(ctx)
	if err != nil {
		if errors.Is(err, driven.ErrSessionExpired) {
			return Outcome{}, err
		}
		return Outcome{Status: model.StatusError, Message: err.Error()}, nil
	}
	if rejection != "" {
		return Outcome{Status: model.StatusInvalid, Message: rejection}, nil
	}

	res, err := v.deps.Passes.CheckPass(ctx, subjectID, v.bus)
	if err != nil {
		if errors.Is(err, driven.ErrSessionExpired) {
			return Outcome{}, err
		}
		return Outcome{Status: model.StatusError, Message: err.Error(), SubjectID: subjectID}, nil
	}

	pass := res.Payload
	if pass.SubjectID == "" {
		pass.SubjectID = subjectID
	}
	if !res.OK {
		return Outcome{
			Status:    model.StatusInvalid,
			Message:   res.MessageOr(MsgPassNotValid),
			SubjectID: subjectID,
			Pass:      &pass,
		}, nil
	}

	outcome := Outcome{
		Status:    model.StatusSuccess,
		Message:   res.MessageOr(MsgPassVerified),
		SubjectID: subjectID,
		Pass:      &pass,
	}
	if v.mode == model.ModeFace {
		outcome.RouteMatches = RouteMatches(pass.Route, v.bus.Route)
	}
	return outcome, nil
}

// settle records the attempt and publishes the terminal state, unless the
// run was discarded. A Close that lands while the attempt is being appended
// cannot take the append back: the attempt stays recorded, the verifier stays
// closed, and the outcome is returned alongside ErrClosed.
func (v *Verifier) settle(ctx context.Context, gen uint64, outcome Outcome) (Outcome, error) {
	v.mu.Lock()
	stale := v.gen != gen
	v.mu.Unlock()
	if stale {
		v.deps.Logger.Debug("discarding result of closed run", "bus_id", v.bus.ID, "status", outcome.Status)
		return Outcome{}, ErrClosed
	}

	outcome.Attempt = v.newAttempt(outcome)
	if v.deps.Recorder != nil {
		v.deps.Recorder.Record(context.WithoutCancel(ctx), outcome.Attempt)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		v.deps.Logger.Info("verifier closed while recording attempt",
			"bus_id", v.bus.ID,
			"attempt_id", outcome.Attempt.ID,
			"status", outcome.Status,
		)
		return outcome, ErrClosed
	}
	v.state = model.StateFor(outcome.Status)
	v.outcome = &outcome
	v.publish()

	v.deps.Logger.Info("verification settled",
		"bus_id", v.bus.ID,
		"mode", v.mode,
		"status", outcome.Status,
		"subject_id", outcome.SubjectID,
	)
	return outcome, nil
}

// expire closes the verifier after the backend ended the session.
func (v *Verifier) expire(gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.gen++
	v.state = model.StateClosed
	v.releaseDeviceLocked()
	v.publish()
	v.deps.Logger.Warn("session expired during verification", "bus_id", v.bus.ID, "mode", v.mode)
}

func (v *Verifier) newAttempt(o Outcome) model.VerificationAttempt {
	now := v.deps.Now().UTC()
	a := model.VerificationAttempt{
		ID:        v.deps.NewID(),
		BusID:     v.bus.ID,
		BusNumber: v.bus.Number,
		Date:      model.DayOf(now),
		Timestamp: now,
		Mode:      v.mode,
		SubjectID: o.SubjectID,
		Status:    o.Status,
		Message:   o.Message,
	}
	if p := o.Pass; p != nil {
		a.SubjectName = p.SubjectName
		a.SubjectPhoto = p.PhotoRef
		a.PassID = p.PassID
		a.PassType = p.PassType
		a.Route = p.Route
		a.Validity = p.Validity
	}
	return a
}
