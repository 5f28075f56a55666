package translate

import "time"

// Stability defaults.
const (
	// StabilityThreshold is the number of consecutive equal labels required.
	StabilityThreshold = 3
	// DisplayConfidence is the exclusive lower bound for a stable detection.
	DisplayConfidence = 0.6
)

// StabilityFilter smooths per-frame classifications into a stable detection.
//
// The run is a strict equality streak: one frame with a different label
// restarts it at 1. There is no majority vote or hysteresis.
type StabilityFilter struct {
	threshold     int
	minConfidence float64

	lastLabel  string
	runLength  int
	stableFrom time.Time
}

// NewStabilityFilter creates a filter. Non-positive arguments select the defaults.
func NewStabilityFilter(threshold int, minConfidence float64) *StabilityFilter {
	if threshold <= 0 {
		threshold = StabilityThreshold
	}
	if minConfidence <= 0 {
		minConfidence = DisplayConfidence
	}
	return &StabilityFilter{
		threshold:     threshold,
		minConfidence: minConfidence,
	}
}

// Observe feeds one sample and reports the stable detection, if any.
// It does not remember what it last emitted; a caller that wants to keep
// showing the previous detection when nothing is returned must do so itself.
func (f *StabilityFilter) Observe(s Sample) (Detection, bool) {
	if s.Label == f.lastLabel && f.runLength > 0 {
		f.runLength++
	} else {
		f.lastLabel = s.Label
		f.runLength = 1
		f.stableFrom = time.Time{}
	}

	if f.runLength == f.threshold {
		f.stableFrom = s.ObservedAt
	}

	if f.runLength < f.threshold || s.Confidence <= f.minConfidence {
		return Detection{}, false
	}

	return Detection{
		Label:       s.Label,
		Confidence:  s.Confidence,
		StableSince: f.stableFrom,
	}, true
}

// RunLength returns the length of the current equal-label run.
func (f *StabilityFilter) RunLength() int {
	return f.runLength
}

// Reset forgets the current run.
func (f *StabilityFilter) Reset() {
	f.lastLabel = ""
	f.runLength = 0
	f.stableFrom = time.Time{}
}
