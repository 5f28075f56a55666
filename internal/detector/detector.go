package detector

import "gocv.io/x/gocv"

// Detector finds hands in a frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to report. Signing uses one.
	MaxHands int

	// MinConfidence is the minimum detection score (0.0-1.0). Hands below it
	// are dropped.
	MinConfidence float64

	// PythonPath and ScriptPath override interpreter and script discovery.
	PythonPath string
	ScriptPath string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MinConfidence: 0.5,
	}
}

// Primary returns the highest-scoring hand, or nil.
func Primary(hands []HandLandmarks) *HandLandmarks {
	var best *HandLandmarks
	for i := range hands {
		if best == nil || hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}
