// Package translate turns a noisy stream of per-frame sign classifications
// into a deliberate, debounced sentence.
//
// Samples flow one way: [StabilityFilter] suppresses flicker, the
// [AutoCommitTracker] decides when a held sign is committed, and the
// [SentenceBuilder] owns the sentence and its commit records. [Pipeline]
// wires the three together and pushes [Snapshot] values to subscribers.
package translate

import (
	"context"
	"time"
)

// SpaceLabel is the reserved classifier label that commits a literal space.
const SpaceLabel = "space"

// Sample is one classifier result.
type Sample struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// Detection is a classification confirmed across consecutive frames.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	// StableSince is when the current run first reached the stability threshold.
	StableSince time.Time `json:"stable_since"`
}

// FrameStatus reports whether a commit's captured frame has arrived.
type FrameStatus string

const (
	FramePending  FrameStatus = "pending"
	FrameCaptured FrameStatus = "captured"
	FrameMissing  FrameStatus = "missing"
)

// CommitRecord is one committed sign in the current session.
type CommitRecord struct {
	ID          string      `json:"id"`
	Seq         int         `json:"seq"`
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	CommittedAt time.Time   `json:"committed_at"`
	Auto        bool        `json:"auto"`
	FrameStatus FrameStatus `json:"frame_status"`
	Frame       []byte      `json:"-"`
}

// SentenceState is an immutable view of the in-progress sentence.
type SentenceState struct {
	SessionID string         `json:"session_id"`
	Text      string         `json:"text"`
	Signs     []CommitRecord `json:"signs"`
	AutoAdd   bool           `json:"auto_add"`
}

// Translation is a finished (or flushed) sentence handed to the history sink.
type Translation struct {
	ID        string
	Sentence  string
	Signs     []CommitRecord
	CreatedAt time.Time
}

// Snapshot is what observers receive on every state-affecting transition.
type Snapshot struct {
	Sentence     SentenceState `json:"sentence"`
	Current      *Detection    `json:"current,omitempty"`
	HoldLabel    string        `json:"hold_label,omitempty"`
	HoldProgress int           `json:"hold_progress"`
	InCooldown   bool          `json:"in_cooldown"`
	At           time.Time     `json:"at"`
}

// FrameCapturer grabs the camera's current frame as an encoded image.
// It may block until a frame is available and must honour ctx cancellation.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// HistorySink persists translations. Persisting a translation whose ID was
// already persisted replaces the earlier entry.
type HistorySink interface {
	Persist(ctx context.Context, t Translation) error
}
