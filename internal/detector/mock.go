package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted hands. It is safe for concurrent use so tests
// can change the hand while a frame loop is running.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that sees no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// Finger selects one finger of a preset hand shape.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

// mcpX is the knuckle x position per non-thumb finger, right hand facing the camera.
var mcpX = [5]float64{0, 0.55, 0.50, 0.45, 0.40}

// shape builds a right hand with the given fingers extended. thumbSide
// extends the thumb outward; otherwise an extended thumb points up.
func shape(extended map[Finger]bool, thumbSide bool) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}

	switch {
	case extended[Thumb] && thumbSide:
		h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
		h.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
		h.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
		h.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}
	case extended[Thumb]:
		h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75}
		h.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.68}
		h.Points[ThumbIP] = Point3D{X: 0.59, Y: 0.62}
		h.Points[ThumbTip] = Point3D{X: 0.59, Y: 0.57}
	default:
		// Folded across the palm.
		h.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75}
		h.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.70, Z: -0.02}
		h.Points[ThumbIP] = Point3D{X: 0.53, Y: 0.68, Z: -0.04}
		h.Points[ThumbTip] = Point3D{X: 0.49, Y: 0.68, Z: -0.04}
	}

	for f := Index; f <= Pinky; f++ {
		base := int(f)*4 + 1
		x := mcpX[f]
		h.Points[base] = Point3D{X: x, Y: 0.68}
		if extended[f] {
			spread := (x - 0.5) * 0.2
			h.Points[base+1] = Point3D{X: x + spread, Y: 0.55}
			h.Points[base+2] = Point3D{X: x + 2*spread, Y: 0.45}
			h.Points[base+3] = Point3D{X: x + 3*spread, Y: 0.35}
		} else {
			h.Points[base+1] = Point3D{X: x, Y: 0.66, Z: -0.05}
			h.Points[base+2] = Point3D{X: x - 0.03, Y: 0.68, Z: -0.04}
			h.Points[base+3] = Point3D{X: x - 0.05, Y: 0.71, Z: -0.02}
		}
	}
	return h
}

// SignA is a fist with the thumb pointing up along the index finger.
func SignA() HandLandmarks {
	return shape(map[Finger]bool{Thumb: true}, false)
}

// SignB is a flat hand, fingers together and up, thumb folded.
func SignB() HandLandmarks {
	return shape(map[Finger]bool{Index: true, Middle: true, Ring: true, Pinky: true}, false)
}

// SignL is the index finger up with the thumb out to the side.
func SignL() HandLandmarks {
	return shape(map[Finger]bool{Thumb: true, Index: true}, true)
}

// SignV is the index and middle fingers up, others folded.
func SignV() HandLandmarks {
	return shape(map[Finger]bool{Index: true, Middle: true}, false)
}

// SignY is the thumb and little finger out, others folded.
func SignY() HandLandmarks {
	return shape(map[Finger]bool{Thumb: true, Pinky: true}, true)
}

// OpenPalm is every finger extended, the "space" sign in the default set.
func OpenPalm() HandLandmarks {
	return shape(map[Finger]bool{Thumb: true, Index: true, Middle: true, Ring: true, Pinky: true}, true)
}

// Presets maps the built-in labels to their hand shapes.
func Presets() map[string]HandLandmarks {
	return map[string]HandLandmarks{
		"a":     SignA(),
		"b":     SignB(),
		"l":     SignL(),
		"v":     SignV(),
		"y":     SignY(),
		"space": OpenPalm(),
	}
}
