package translate

import "errors"

// Advisories. None of these are fatal; they are surfaced once per user action.
var (
	// ErrLowConfidence is returned by a manual commit below the confidence threshold.
	ErrLowConfidence = errors.New("low confidence")

	// ErrNoActiveDetection is returned by a manual commit with nothing detected.
	ErrNoActiveDetection = errors.New("no active detection")

	// ErrEmptySentence is returned when saving a blank sentence.
	ErrEmptySentence = errors.New("no sentence to save")

	// ErrNoCapturedSigns is returned when saving a sentence with no committed signs.
	ErrNoCapturedSigns = errors.New("no signs captured to save")

	// ErrCaptureFailed marks a commit whose frame capture returned nothing.
	ErrCaptureFailed = errors.New("frame capture failed")

	// ErrEmptyLabel is returned when a label normalises to nothing.
	ErrEmptyLabel = errors.New("empty label")
)

// ErrSessionClosed is returned by commands issued after the pipeline was
// shut down.
var ErrSessionClosed = errors.New("session closed")

// advisoryKind maps an advisory to its metric attribute value.
func advisoryKind(err error) string {
	switch {
	case errors.Is(err, ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, ErrNoActiveDetection):
		return "no_active_detection"
	case errors.Is(err, ErrEmptySentence):
		return "empty_sentence"
	case errors.Is(err, ErrNoCapturedSigns):
		return "no_captured_signs"
	case errors.Is(err, ErrEmptyLabel):
		return "empty_label"
	default:
		return "other"
	}
}
