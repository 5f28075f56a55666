package translate

import "time"

// Decision is the outcome of evaluating one stable detection.
type Decision int

const (
	// Reject means the detection does not count towards a commit.
	Reject Decision = iota
	// Hold means the detection is accumulating hold time.
	Hold
	// Commit means the held sign should be appended now.
	Commit
)

func (d Decision) String() string {
	switch d {
	case Hold:
		return "hold"
	case Commit:
		return "commit"
	default:
		return "reject"
	}
}

// Verdict carries a Decision and, for Commit, the sign to append.
type Verdict struct {
	Decision   Decision
	Label      string
	Confidence float64
}

// TrackerConfig holds the hold-to-commit timings.
type TrackerConfig struct {
	// MinConfidence is the lowest confidence that may accumulate hold time.
	MinConfidence float64
	// HoldDuration is how long a sign must be held before it commits.
	HoldDuration time.Duration
	// Cooldown is the minimum gap between any two automatic commits.
	Cooldown time.Duration
	// DuplicateWindow suppresses the just-committed label for this long.
	DuplicateWindow time.Duration
}

// DefaultTrackerConfig returns the standard auto-add timings.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MinConfidence:   0.70,
		HoldDuration:    1000 * time.Millisecond,
		Cooldown:        800 * time.Millisecond,
		DuplicateWindow: 1500 * time.Millisecond,
	}
}

// AutoCommitTracker is the hold-to-commit state machine used in auto-add mode.
// It is not safe for concurrent use; the Pipeline serialises access.
type AutoCommitTracker struct {
	cfg TrackerConfig

	// Invariant: trackedLabel != "" iff !holdStartedAt.IsZero().
	trackedLabel       string
	holdStartedAt      time.Time
	lastCommitAt       time.Time
	lastCommittedLabel string
}

// NewAutoCommitTracker creates a tracker. Zero fields in cfg take the defaults.
func NewAutoCommitTracker(cfg TrackerConfig) *AutoCommitTracker {
	def := DefaultTrackerConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = def.HoldDuration
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = def.DuplicateWindow
	}
	return &AutoCommitTracker{cfg: cfg}
}

// Evaluate advances the state machine with the current stable detection.
//
// A nil detection is rejected without touching the hold: a single dropped
// frame in the middle of a hold does not restart it.
func (t *AutoCommitTracker) Evaluate(d *Detection, now time.Time) Verdict {
	if d == nil {
		return Verdict{Decision: Reject}
	}

	if d.Confidence < t.cfg.MinConfidence {
		t.clearHold()
		return Verdict{Decision: Reject}
	}

	if t.IsInCooldown(d.Label, now) {
		return Verdict{Decision: Reject}
	}

	if d.Label == t.trackedLabel && !t.holdStartedAt.IsZero() {
		held := now.Sub(t.holdStartedAt)
		if held >= t.cfg.HoldDuration && t.sinceLastCommit(now) >= t.cfg.Cooldown {
			t.lastCommitAt = now
			t.lastCommittedLabel = d.Label
			t.clearHold()
			return Verdict{Decision: Commit, Label: d.Label, Confidence: d.Confidence}
		}
		return Verdict{Decision: Hold}
	}

	t.trackedLabel = d.Label
	t.holdStartedAt = now
	return Verdict{Decision: Hold}
}

// HoldProgress returns how far the current hold is towards a commit, from 0 to 100.
func (t *AutoCommitTracker) HoldProgress(now time.Time) int {
	if t.holdStartedAt.IsZero() {
		return 0
	}
	held := now.Sub(t.holdStartedAt)
	if held <= 0 {
		return 0
	}
	pct := int(100 * held / t.cfg.HoldDuration)
	if pct > 100 {
		return 100
	}
	return pct
}

// IsInCooldown reports whether label was just committed and is still suppressed.
func (t *AutoCommitTracker) IsInCooldown(label string, now time.Time) bool {
	return t.lastCommittedLabel != "" &&
		label == t.lastCommittedLabel &&
		now.Sub(t.lastCommitAt) < t.cfg.DuplicateWindow
}

// TrackedLabel returns the label currently being held, or "".
func (t *AutoCommitTracker) TrackedLabel() string {
	return t.trackedLabel
}

// Reset clears the hold and the commit history.
func (t *AutoCommitTracker) Reset() {
	t.clearHold()
	t.lastCommitAt = time.Time{}
	t.lastCommittedLabel = ""
}

func (t *AutoCommitTracker) clearHold() {
	t.trackedLabel = ""
	t.holdStartedAt = time.Time{}
}

func (t *AutoCommitTracker) sinceLastCommit(now time.Time) time.Duration {
	if t.lastCommitAt.IsZero() {
		return t.cfg.Cooldown
	}
	return now.Sub(t.lastCommitAt)
}
