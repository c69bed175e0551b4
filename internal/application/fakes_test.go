package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/passverify/internal/application"
	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// --- Capture fakes ---

// fakeDevice cycles through frames. With block set, Capture waits until the
// device is closed or the context ends.
type fakeDevice struct {
	frames []model.Frame
	err    error
	block  bool

	mu       sync.Mutex
	next     int
	closed   chan struct{}
	once     sync.Once
	closes   atomic.Int32
	captures atomic.Int32
}

func newFakeDevice(frames ...model.Frame) *fakeDevice {
	return &fakeDevice{frames: frames, closed: make(chan struct{})}
}

func (d *fakeDevice) Capture(ctx context.Context) (model.Frame, error) {
	d.captures.Add(1)

	select {
	case <-d.closed:
		return model.Frame{}, fmt.Errorf("fake camera closed: %w", driven.ErrDeviceUnavailable)
	default:
	}

	if d.block {
		select {
		case <-d.closed:
			return model.Frame{}, fmt.Errorf("fake camera closed: %w", driven.ErrDeviceUnavailable)
		case <-ctx.Done():
			return model.Frame{}, ctx.Err()
		}
	}
	if d.err != nil {
		return model.Frame{}, d.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frames[d.next%len(d.frames)]
	d.next++
	return f, nil
}

func (d *fakeDevice) Close() error {
	d.closes.Add(1)
	d.once.Do(func() { close(d.closed) })
	return nil
}

// fakeOpener hands out devices from newDevice, or fails with err.
type fakeOpener struct {
	mu        sync.Mutex
	err       error
	newDevice func() *fakeDevice
	devices   []*fakeDevice
}

func (o *fakeOpener) Open(context.Context) (driven.CaptureDevice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	d := o.newDevice()
	o.devices = append(o.devices, d)
	return d, nil
}

func (o *fakeOpener) opened() []*fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeDevice(nil), o.devices...)
}

func (o *fakeOpener) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// fakeDecoder treats frames whose data starts with "qr:" as codes.
type fakeDecoder struct{}

func (fakeDecoder) Decode(frame model.Frame) (string, bool, error) {
	text := string(frame.Data)
	if rest, ok := strings.CutPrefix(text, "qr:"); ok {
		return rest, true, nil
	}
	if text == "corrupt" {
		return "", false, errors.New("not an image")
	}
	return "", false, nil
}

func faceFrame() model.Frame {
	return model.Frame{Data: []byte("face"), ContentType: "image/jpeg"}
}

func blankFrame() model.Frame {
	return model.Frame{Data: []byte("blank"), ContentType: "image/png"}
}

func qrFrame(payload string) model.Frame {
	return model.Frame{Data: []byte("qr:" + payload), ContentType: "image/png"}
}

// --- Backend fakes ---

type fakeFaces struct {
	recognize func(ctx context.Context, frame model.Frame) (model.Result[string], error)
	calls     atomic.Int32
}

func (f *fakeFaces) RecognizeFace(ctx context.Context, frame model.Frame) (model.Result[string], error) {
	f.calls.Add(1)
	return f.recognize(ctx, frame)
}

type fakePasses struct {
	check func(ctx context.Context, subjectID string, bus model.Bus) (model.Result[model.Pass], error)

	mu       sync.Mutex
	subjects []string
}

func (f *fakePasses) CheckPass(ctx context.Context, subjectID string, bus model.Bus) (model.Result[model.Pass], error) {
	f.mu.Lock()
	f.subjects = append(f.subjects, subjectID)
	f.mu.Unlock()
	return f.check(ctx, subjectID, bus)
}

func (f *fakePasses) calledWith() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []model.VerificationAttempt
	// onRecord runs after the attempt is stored, outside the lock.
	onRecord func()
}

func (r *fakeRecorder) Record(_ context.Context, attempt model.VerificationAttempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, attempt)
	hook := r.onRecord
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *fakeRecorder) recorded() []model.VerificationAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.VerificationAttempt(nil), r.attempts...)
}

// --- Verifier fixture ---

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func testBus() model.Bus {
	return model.Bus{ID: "bus-1", Number: "KA-01", Route: model.Route{From: "Depot", To: "Market"}}
}

func validPass(subjectID string) model.Pass {
	return model.Pass{
		SubjectID:   subjectID,
		SubjectName: "Asha",
		PassID:      "P-9",
		PassType:    "monthly",
		Route:       model.Route{From: "depot", To: "MARKET"},
		Validity:    "2026-12-31",
	}
}

type verifierFixture struct {
	opener   *fakeOpener
	faces    *fakeFaces
	passes   *fakePasses
	recorder *fakeRecorder
	deps     application.VerifierDeps
}

func newFixture(deviceFactory func() *fakeDevice) *verifierFixture {
	f := &verifierFixture{
		opener: &fakeOpener{newDevice: deviceFactory},
		faces: &fakeFaces{recognize: func(context.Context, model.Frame) (model.Result[string], error) {
			return model.Ok("u-1", ""), nil
		}},
		passes: &fakePasses{check: func(_ context.Context, subjectID string, _ model.Bus) (model.Result[model.Pass], error) {
			return model.Ok(validPass(subjectID), ""), nil
		}},
		recorder: &fakeRecorder{},
	}

	var ids atomic.Int32
	f.deps = application.VerifierDeps{
		Opener:   f.opener,
		Faces:    f.faces,
		Passes:   f.passes,
		Decoder:  fakeDecoder{},
		Recorder: f.recorder,
		ScanRate: 1000,
		Now:      func() time.Time { return fixedNow },
		NewID:    func() string { return fmt.Sprintf("attempt-%d", ids.Add(1)) },
	}
	return f
}

func (f *verifierFixture) verifier(t *testing.T, mode model.Mode) *application.Verifier {
	t.Helper()
	v, err := application.NewVerifier(testBus(), mode, f.deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func settle(t *testing.T, v *application.Verifier) application.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := v.WaitSettled(ctx)
	require.NoError(t, err)
	return snap
}
