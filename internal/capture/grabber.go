package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used when a Grabber is created with quality <= 0.
const DefaultJPEGQuality = 80

// Grabber holds the most recent camera frame. The frame loop publishes every
// frame it reads; CaptureFrame and Latest encode the held frame as JPEG.
//
// A Grabber starts closed. While closed, CaptureFrame fails with
// ErrCameraNotOpen and waiting callers are released.
type Grabber struct {
	quality int

	mu     sync.Mutex
	latest *gocv.Mat
	seq    uint64
	open   bool
	notify chan struct{} // closed and replaced on every Publish and on Close
}

// NewGrabber creates a closed Grabber.
func NewGrabber(quality int) *Grabber {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Grabber{quality: quality, notify: make(chan struct{})}
}

// Open starts accepting frames.
func (g *Grabber) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
}

// Close drops the held frame and fails pending and future captures until
// the next Open.
func (g *Grabber) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
	g.dropLocked()
	g.wakeLocked()
}

// Publish stores a clone of frame as the latest. It is a no-op when closed.
func (g *Grabber) Publish(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}
	clone := frame.Clone()

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		clone.Close()
		return
	}
	g.dropLocked()
	g.latest = &clone
	g.seq++
	g.wakeLocked()
}

// Seq returns the number of frames published so far.
func (g *Grabber) Seq() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// CaptureFrame returns the current frame as JPEG, waiting for the first one
// if none has been published yet.
func (g *Grabber) CaptureFrame(ctx context.Context) ([]byte, error) {
	g.mu.Lock()
	for g.open && g.latest == nil {
		wait := g.notify
		g.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.mu.Lock()
	}
	if !g.open {
		g.mu.Unlock()
		return nil, ErrCameraNotOpen
	}
	frame := g.latest.Clone()
	g.mu.Unlock()

	defer frame.Close()
	return g.encode(frame)
}

// Latest returns the current frame as JPEG without waiting.
func (g *Grabber) Latest() ([]byte, error) {
	g.mu.Lock()
	if !g.open {
		g.mu.Unlock()
		return nil, ErrCameraNotOpen
	}
	if g.latest == nil {
		g.mu.Unlock()
		return nil, ErrNoFrame
	}
	frame := g.latest.Clone()
	g.mu.Unlock()

	defer frame.Close()
	return g.encode(frame)
}

func (g *Grabber) encode(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), g.quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

func (g *Grabber) dropLocked() {
	if g.latest != nil {
		g.latest.Close()
		g.latest = nil
	}
}

func (g *Grabber) wakeLocked() {
	close(g.notify)
	g.notify = make(chan struct{})
}
