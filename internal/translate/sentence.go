package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/clock"
	"github.com/ayusman/mudra/internal/observe"
)

// BuilderConfig configures a SentenceBuilder.
type BuilderConfig struct {
	Clock    clock.Clock
	Capturer FrameCapturer // optional
	Sink     HistorySink   // optional
	Logger   *slog.Logger
	Metrics  *observe.Metrics

	// CaptureTimeout bounds a single frame capture. Zero means no bound
	// beyond the session lifetime.
	CaptureTimeout time.Duration
}

// SentenceBuilder owns the in-progress sentence and its commit records.
//
// Frame captures run asynchronously and are attached to their record by
// (generation, record ID). Clearing the sentence starts a new generation and
// cancels outstanding captures, so a late frame can never land on a record
// from a different session.
type SentenceBuilder struct {
	clock          clock.Clock
	capturer       FrameCapturer
	sink           HistorySink
	logger         *slog.Logger
	metrics        *observe.Metrics
	captureTimeout time.Duration

	mu         sync.Mutex
	onChange   func()
	sessionID  string
	generation uint64
	sessionCtx context.Context
	cancel     context.CancelFunc
	text       string
	signs      []CommitRecord
	nextSeq    int
	autoAdd    bool

	captures sync.WaitGroup
}

// NewSentenceBuilder creates an empty builder.
func NewSentenceBuilder(cfg BuilderConfig) *SentenceBuilder {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	b := &SentenceBuilder{
		clock:          cfg.Clock,
		capturer:       cfg.Capturer,
		sink:           cfg.Sink,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		captureTimeout: cfg.CaptureTimeout,
	}
	b.resetLocked()
	return b
}

// NormalizeLabel strips control characters, trims surrounding whitespace and
// lower-cases the label. Lower case is the canonical display convention.
func NormalizeLabel(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, label)
	return strings.ToLower(strings.TrimSpace(cleaned))
}

// OnChange registers fn to be called after an asynchronous change (a frame
// arriving). fn is called without the builder's lock held.
func (b *SentenceBuilder) OnChange(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// CommitLetter appends a sign to the sentence and records it. The reserved
// label "space" appends a literal space. When a capturer is configured a
// frame capture is started for the new record; the record's frame is
// pending until it completes.
func (b *SentenceBuilder) CommitLetter(label string, confidence float64, auto bool) (CommitRecord, error) {
	norm := NormalizeLabel(label)
	if norm == "" {
		return CommitRecord{}, fmt.Errorf("%w: %q", ErrEmptyLabel, label)
	}

	b.mu.Lock()
	rec := CommitRecord{
		ID:          uuid.NewString(),
		Seq:         b.nextSeq,
		Label:       norm,
		Confidence:  confidence,
		CommittedAt: b.clock.Now(),
		Auto:        auto,
		FrameStatus: FrameMissing,
	}
	if b.capturer != nil {
		rec.FrameStatus = FramePending
	}
	b.nextSeq++

	if norm == SpaceLabel {
		b.text += " "
	} else {
		b.text += norm
	}
	b.signs = append(b.signs, rec)
	gen, ctx := b.generation, b.sessionCtx
	b.mu.Unlock()

	if b.capturer != nil {
		b.captures.Add(1)
		go b.capture(ctx, gen, rec.ID)
	}

	b.logger.Debug("letter committed", "label", norm, "confidence", confidence, "auto", auto, "seq", rec.Seq)
	return rec, nil
}

// capture runs one frame capture and attaches the result to record id.
func (b *SentenceBuilder) capture(ctx context.Context, gen uint64, id string) {
	defer b.captures.Done()

	if b.captureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.captureTimeout)
		defer cancel()
	}

	frame, err := b.capturer.CaptureFrame(ctx)
	status := FrameCaptured
	if err != nil || len(frame) == 0 {
		status = FrameMissing
		frame = nil
	}

	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		b.metrics.RecordCapture(context.Background(), "discarded")
		return
	}
	idx := -1
	for i := range b.signs {
		if b.signs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		b.metrics.RecordCapture(context.Background(), "discarded")
		return
	}
	b.signs[idx].Frame = frame
	b.signs[idx].FrameStatus = status
	onChange := b.onChange
	b.mu.Unlock()

	if status == FrameMissing {
		b.logger.Warn("commit recorded without image", "record", id, "err", fmt.Errorf("%w: %v", ErrCaptureFailed, err))
		b.metrics.RecordCapture(context.Background(), "failed")
	} else {
		b.metrics.RecordCapture(context.Background(), "ok")
	}

	if onChange != nil {
		onChange()
	}
}

// AddSpace appends a single space.
func (b *SentenceBuilder) AddSpace() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text += " "
}

// SetAutoAdd records the auto-add flag exposed in snapshots.
func (b *SentenceBuilder) SetAutoAdd(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoAdd = enabled
}

// Save persists the current sentence without clearing it.
// It returns ErrEmptySentence or ErrNoCapturedSigns when there is nothing to save.
func (b *SentenceBuilder) Save(ctx context.Context) error {
	b.mu.Lock()
	if strings.TrimSpace(b.text) == "" {
		b.mu.Unlock()
		return ErrEmptySentence
	}
	if len(b.signs) == 0 {
		b.mu.Unlock()
		return ErrNoCapturedSigns
	}
	t := b.translationLocked()
	b.mu.Unlock()

	return b.persist(ctx, t)
}

// Flush persists the sentence if there is something to persist and reports
// whether it did. It never clears and never returns an advisory.
func (b *SentenceBuilder) Flush(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if !b.flushableLocked() {
		b.mu.Unlock()
		return false, nil
	}
	t := b.translationLocked()
	b.mu.Unlock()

	if err := b.persist(ctx, t); err != nil {
		return false, err
	}
	return true, nil
}

// Clear flushes a non-empty sentence to the history sink and then resets the
// builder to an empty session. If the flush fails the session is kept as is
// and the error returned so the caller can retry.
func (b *SentenceBuilder) Clear(ctx context.Context) (bool, error) {
	flushed, err := b.Flush(ctx)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()
	return flushed, nil
}

// Snapshot returns a copy of the sentence state.
func (b *SentenceBuilder) Snapshot() SentenceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return SentenceState{
		SessionID: b.sessionID,
		Text:      b.text,
		Signs:     append([]CommitRecord(nil), b.signs...),
		AutoAdd:   b.autoAdd,
	}
}

// Close cancels in-flight captures and discards their results.
func (b *SentenceBuilder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel()
	b.generation++
}

// WaitCaptures blocks until all started captures have finished.
func (b *SentenceBuilder) WaitCaptures() {
	b.captures.Wait()
}

func (b *SentenceBuilder) flushableLocked() bool {
	return b.sink != nil && strings.TrimSpace(b.text) != "" && len(b.signs) > 0
}

func (b *SentenceBuilder) translationLocked() Translation {
	signs := append([]CommitRecord(nil), b.signs...)
	created := b.clock.Now()
	if len(signs) > 0 {
		created = signs[0].CommittedAt
	}
	return Translation{
		ID:        b.sessionID,
		Sentence:  b.text,
		Signs:     signs,
		CreatedAt: created,
	}
}

func (b *SentenceBuilder) persist(ctx context.Context, t Translation) error {
	if b.sink == nil {
		return nil
	}
	start := b.clock.Now()
	err := b.sink.Persist(ctx, t)
	elapsed := b.clock.Since(start)
	if err != nil {
		b.metrics.RecordFlush(ctx, "error", elapsed)
		b.logger.Error("failed to persist translation", "id", t.ID, "err", err)
		return fmt.Errorf("persist translation %s: %w", t.ID, err)
	}
	b.metrics.RecordFlush(ctx, "ok", elapsed)
	b.logger.Info("translation persisted", "id", t.ID, "sentence", t.Sentence, "signs", len(t.Signs))
	return nil
}

// resetLocked starts a new, empty session generation.
func (b *SentenceBuilder) resetLocked() {
	if b.cancel != nil {
		b.cancel()
	}
	b.sessionCtx, b.cancel = context.WithCancel(context.Background())
	b.generation++
	b.sessionID = uuid.NewString()
	b.text = ""
	b.signs = nil
	b.nextSeq = 0
}
