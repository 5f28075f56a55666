// Package detector finds hands in camera frames and reports their 21
// landmarks.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// NumFeatures is the length of the vector returned by Features.
const NumFeatures = 2 * NumLandmarks

// Point3D is a landmark position. X and Y are in image-relative units, Z is
// depth relative to the wrist.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

func distance3D(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Normalize returns a copy of the hand translated so the wrist is at the
// origin and scaled so the wrist to middle-finger MCP distance is 1.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	out := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	wrist := h.Points[Wrist]
	for i := range h.Points {
		out.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := distance3D(Point3D{}, out.Points[MiddleMCP])
	if scale < 1e-10 {
		return out
	}
	for i := range out.Points {
		out.Points[i].X /= scale
		out.Points[i].Y /= scale
		out.Points[i].Z /= scale
	}
	return out
}

// Features returns the normalized (x, y) pairs of all 21 landmarks as a flat
// vector: x0, y0, x1, y1, ... Depth is dropped. Returns nil for a nil hand.
func (h *HandLandmarks) Features() []float64 {
	n := h.Normalize()
	if n == nil {
		return nil
	}
	f := make([]float64, 0, NumFeatures)
	for _, p := range n.Points {
		f = append(f, p.X, p.Y)
	}
	return f
}
