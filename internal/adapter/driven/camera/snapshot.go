// Package camera implements the capture ports: camera devices that produce
// still frames and a QR decoder for them.
package camera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

// maxFrameBytes caps the size of a single snapshot.
const maxFrameBytes = 16 << 20

var (
	_ driven.DeviceOpener  = (*SnapshotOpener)(nil)
	_ driven.CaptureDevice = (*snapshotDevice)(nil)
)

// SnapshotOpener opens IP cameras that serve a still JPEG per GET request.
type SnapshotOpener struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewSnapshotOpener creates an opener for the camera snapshot URL. A nil
// client gets one with a 5 second timeout.
func NewSnapshotOpener(url string, client *http.Client, logger *slog.Logger) *SnapshotOpener {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotOpener{url: url, client: client, logger: logger}
}

// Open probes the camera with one snapshot request so an unreachable camera
// fails at acquisition rather than at the first capture.
func (o *SnapshotOpener) Open(ctx context.Context) (driven.CaptureDevice, error) {
	closed, release := context.WithCancel(context.Background())
	dev := &snapshotDevice{opener: o, closed: closed, release: release}

	if _, err := dev.Capture(ctx); err != nil {
		release()
		return nil, err
	}
	o.logger.Debug("snapshot camera opened", "url", o.url)
	return dev, nil
}

type snapshotDevice struct {
	opener *SnapshotOpener

	// closed is canceled by Close and aborts any in-flight capture.
	closed  context.Context
	release context.CancelFunc
	once    sync.Once
}

func (d *snapshotDevice) Capture(ctx context.Context) (model.Frame, error) {
	if d.closed.Err() != nil {
		return model.Frame{}, fmt.Errorf("snapshot camera closed: %w", driven.ErrDeviceUnavailable)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(d.closed, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, d.opener.url, nil)
	if err != nil {
		return model.Frame{}, fmt.Errorf("building snapshot request: %w", driven.ErrDeviceUnavailable)
	}

	resp, err := d.opener.client.Do(req)
	if err != nil {
		return model.Frame{}, fmt.Errorf("requesting snapshot: %w: %w", driven.ErrDeviceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Frame{}, fmt.Errorf("snapshot status %d: %w", resp.StatusCode, driven.ErrDeviceUnavailable)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return model.Frame{}, fmt.Errorf("reading snapshot: %w: %w", driven.ErrDeviceUnavailable, err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return model.Frame{}, fmt.Errorf("snapshot content type %q: %w", ct, driven.ErrDeviceUnavailable)
	}

	return model.Frame{Data: data, ContentType: ct, CapturedAt: time.Now().UTC()}, nil
}

// Close releases the device. It is idempotent.
func (d *snapshotDevice) Close() error {
	d.once.Do(func() {
		d.release()
		d.opener.logger.Debug("snapshot camera released", "url", d.opener.url)
	})
	return nil
}
