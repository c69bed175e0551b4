package camera

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

var (
	_ driven.DeviceOpener  = (*DirectoryOpener)(nil)
	_ driven.CaptureDevice = (*dirDevice)(nil)
)

var frameExtensions = []string{".jpg", ".jpeg", ".png"}

// DirectoryOpener replays image files from a directory as camera frames, in
// file name order, cycling back to the first file after the last.
type DirectoryOpener struct {
	dir      string
	interval time.Duration
	logger   *slog.Logger
}

// NewDirectoryOpener creates an opener over dir. Each capture after the
// first waits interval, emulating a camera's frame rate.
func NewDirectoryOpener(dir string, interval time.Duration, logger *slog.Logger) *DirectoryOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryOpener{dir: dir, interval: interval, logger: logger}
}

// Open lists the frame files. A missing directory or one without frames
// cannot be opened.
func (o *DirectoryOpener) Open(_ context.Context) (driven.CaptureDevice, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory %s: %w: %w", o.dir, driven.ErrDeviceUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(o.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames in %s: %w", o.dir, driven.ErrDeviceUnavailable)
	}
	slices.Sort(files)

	o.logger.Debug("frame directory opened", "dir", o.dir, "frames", len(files))
	return &dirDevice{files: files, interval: o.interval, done: make(chan struct{})}, nil
}

type dirDevice struct {
	files    []string
	interval time.Duration

	mu      sync.Mutex
	next    int
	started bool

	done      chan struct{}
	closeOnce sync.Once
}

func (d *dirDevice) Capture(ctx context.Context) (model.Frame, error) {
	select {
	case <-d.done:
		return model.Frame{}, fmt.Errorf("frame directory closed: %w", driven.ErrDeviceUnavailable)
	default:
	}

	d.mu.Lock()
	wait := d.started && d.interval > 0
	d.started = true
	d.mu.Unlock()

	if wait {
		timer := time.NewTimer(d.interval)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-d.done:
			return model.Frame{}, fmt.Errorf("frame directory closed: %w", driven.ErrDeviceUnavailable)
		case <-ctx.Done():
			return model.Frame{}, ctx.Err()
		}
	}

	d.mu.Lock()
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Frame{}, fmt.Errorf("reading frame %s: %w: %w", path, driven.ErrDeviceUnavailable, err)
	}
	return model.Frame{Data: data, ContentType: http.DetectContentType(data), CapturedAt: time.Now().UTC()}, nil
}

func (d *dirDevice) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}
