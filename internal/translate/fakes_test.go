package translate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ayusman/mudra/internal/observe"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m
}

// fakeCapturer returns scripted frames keyed by 1-based call number.
// A call with a gate blocks until the gate is closed.
type fakeCapturer struct {
	mu        sync.Mutex
	calls     int
	frames    map[int][]byte
	errs      map[int]error
	gates     map[int]chan struct{}
	ignoreCtx bool
	started   chan int
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		frames:  make(map[int][]byte),
		errs:    make(map[int]error),
		gates:   make(map[int]chan struct{}),
		started: make(chan int, 16),
	}
}

func (f *fakeCapturer) CaptureFrame(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	frame, err, gate := f.frames[n], f.errs[n], f.gates[n]
	ignoreCtx := f.ignoreCtx
	f.mu.Unlock()

	f.started <- n

	if gate != nil {
		if ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return frame, err
}

func (f *fakeCapturer) waitStarted(t *testing.T, n int) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != n {
			t.Fatalf("capture call started = %d, want %d", got, n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("capture call %d never started", n)
	}
}

// fakeSink records every persisted translation.
type fakeSink struct {
	mu    sync.Mutex
	saved []Translation
	err   error
}

func (s *fakeSink) Persist(_ context.Context, t Translation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, t)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *fakeSink) all() []Translation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Translation(nil), s.saved...)
}

func (s *fakeSink) last() Translation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

var errDiskFull = errors.New("disk full")
