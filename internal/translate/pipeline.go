package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/clock"
	"github.com/ayusman/mudra/internal/observe"
)

// ManualMinConfidence is the exclusive lower bound for a manual commit.
const ManualMinConfidence = 0.70

// Config configures a Pipeline. Zero values select the defaults.
type Config struct {
	Clock clock.Clock

	StabilityThreshold  int
	DisplayConfidence   float64
	Tracker             TrackerConfig
	ManualMinConfidence float64
	AutoAdd             bool

	Capturer       FrameCapturer
	History        HistorySink
	CaptureTimeout time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Pipeline wires classification samples through the stability filter, the
// auto-commit tracker and the sentence builder.
//
// Every entry point serialises on one mutex, so samples and commands are
// processed one at a time in arrival order.
type Pipeline struct {
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *observe.Metrics
	manualMin float64

	mu      sync.Mutex
	filter  *StabilityFilter
	tracker *AutoCommitTracker
	builder *SentenceBuilder
	current *Detection
	autoAdd bool
	stopped bool

	subsMu  sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// NewPipeline creates a pipeline with an empty sentence.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.ManualMinConfidence <= 0 {
		cfg.ManualMinConfidence = ManualMinConfidence
	}

	p := &Pipeline{
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		manualMin: cfg.ManualMinConfidence,
		filter:    NewStabilityFilter(cfg.StabilityThreshold, cfg.DisplayConfidence),
		tracker:   NewAutoCommitTracker(cfg.Tracker),
		builder: NewSentenceBuilder(BuilderConfig{
			Clock:          cfg.Clock,
			Capturer:       cfg.Capturer,
			Sink:           cfg.History,
			Logger:         cfg.Logger,
			Metrics:        cfg.Metrics,
			CaptureTimeout: cfg.CaptureTimeout,
		}),
		autoAdd: cfg.AutoAdd,
		subs:    make(map[int]chan Snapshot),
	}
	p.builder.SetAutoAdd(cfg.AutoAdd)
	p.builder.OnChange(p.refresh)
	return p
}

// OnClassification processes one classifier result. Samples with an empty
// label are treated as "no hand" and ignored.
func (p *Pipeline) OnClassification(s Sample) {
	if NormalizeLabel(s.Label) == "" {
		return
	}
	if s.ObservedAt.IsZero() {
		s.ObservedAt = p.clock.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	det, stable := p.filter.Observe(s)
	p.metrics.RecordSample(context.Background(), stable)

	var stableDet *Detection
	if stable {
		stableDet = &det
		p.current = stableDet
	}

	if p.autoAdd {
		v := p.tracker.Evaluate(stableDet, s.ObservedAt)
		if v.Decision == Commit {
			if _, err := p.builder.CommitLetter(v.Label, v.Confidence, true); err != nil {
				p.logger.Warn("auto commit dropped", "label", v.Label, "err", err)
			} else {
				p.metrics.RecordCommit(context.Background(), "auto")
			}
		}
	}

	if stable {
		p.publishLocked()
	}
}

// Run consumes samples until the channel is closed or ctx is done.
func (p *Pipeline) Run(ctx context.Context, samples <-chan Sample) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			p.OnClassification(s)
		}
	}
}

// AddLetterManually commits the currently displayed detection, bypassing the
// hold and cooldown rules. It returns ErrNoActiveDetection or
// ErrLowConfidence without changing the sentence.
func (p *Pipeline) AddLetterManually() (CommitRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return CommitRecord{}, ErrSessionClosed
	}
	if p.current == nil {
		return CommitRecord{}, p.advise(ErrNoActiveDetection)
	}
	if p.current.Confidence <= p.manualMin {
		return CommitRecord{}, p.advise(fmt.Errorf("%w: %s at %.0f%%", ErrLowConfidence, p.current.Label, p.current.Confidence*100))
	}

	rec, err := p.builder.CommitLetter(p.current.Label, p.current.Confidence, false)
	if err != nil {
		return CommitRecord{}, p.advise(err)
	}
	p.metrics.RecordCommit(context.Background(), "manual")
	p.publishLocked()
	return rec, nil
}

// AddSpace appends a space to the sentence.
func (p *Pipeline) AddSpace() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.builder.AddSpace()
	p.publishLocked()
}

// ClearSentence flushes a non-empty sentence to history and starts a new one.
// The displayed detection, the stability run and the hold state are reset
// too. On a flush error nothing is reset.
func (p *Pipeline) ClearSentence(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false, ErrSessionClosed
	}
	flushed, err := p.builder.Clear(ctx)
	if err != nil {
		return false, err
	}
	p.current = nil
	p.filter.Reset()
	p.tracker.Reset()
	p.publishLocked()
	return flushed, nil
}

// ToggleAutoAdd flips auto-add mode and returns the new state.
func (p *Pipeline) ToggleAutoAdd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setAutoAddLocked(!p.autoAdd)
	return p.autoAdd
}

// SetAutoAdd sets auto-add mode explicitly.
func (p *Pipeline) SetAutoAdd(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setAutoAddLocked(enabled)
}

func (p *Pipeline) setAutoAddLocked(enabled bool) {
	p.autoAdd = enabled
	if !enabled {
		p.tracker.Reset()
	}
	p.builder.SetAutoAdd(enabled)
	p.logger.Info("auto-add toggled", "enabled", enabled)
	p.publishLocked()
}

// AutoAdd reports whether auto-add mode is on.
func (p *Pipeline) AutoAdd() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoAdd
}

// SaveToHistory persists the sentence without clearing it.
func (p *Pipeline) SaveToHistory(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrSessionClosed
	}
	if err := p.builder.Save(ctx); err != nil {
		if isAdvisory(err) {
			return p.advise(err)
		}
		return err
	}
	return nil
}

// Finish flushes the sentence if non-empty, leaving it and the displayed
// detection in place. Used when the session ends.
func (p *Pipeline) Finish(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.builder.Flush(ctx)
}

// Current returns the displayed detection, or nil.
func (p *Pipeline) Current() *Detection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	d := *p.current
	return &d
}

// Snapshot returns the observable state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers an observer. The channel holds at most one snapshot;
// a slow reader only ever sees the latest. Call the returned function to
// unsubscribe.
func (p *Pipeline) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.subsMu.Lock()
	if p.closed {
		p.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subsMu.Unlock()
	p.metrics.Subscribers.Add(context.Background(), 1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subsMu.Lock()
			defer p.subsMu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
				p.metrics.Subscribers.Add(context.Background(), -1)
			}
		})
	}
}

// Shutdown flushes the sentence if non-empty and stops the pipeline in one
// step: samples and commands arriving afterwards are dropped or refused with
// ErrSessionClosed, so nothing can be committed after the final flush.
// The pipeline stops even when the flush fails.
func (p *Pipeline) Shutdown(ctx context.Context) (bool, error) {
	p.mu.Lock()
	flushed, err := p.builder.Flush(ctx)
	p.stopLocked()
	p.mu.Unlock()

	p.closeSubscriptions()
	return flushed, err
}

// Close stops the pipeline without flushing. In-flight captures are
// cancelled and all subscriptions closed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()

	p.closeSubscriptions()
}

func (p *Pipeline) stopLocked() {
	p.stopped = true
	p.builder.Close()
}

func (p *Pipeline) closeSubscriptions() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
		p.metrics.Subscribers.Add(context.Background(), -1)
	}
}

// WaitCaptures blocks until in-flight frame captures have finished.
func (p *Pipeline) WaitCaptures() {
	p.builder.WaitCaptures()
}

// refresh publishes after an asynchronous builder change.
func (p *Pipeline) refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publishLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	now := p.clock.Now()
	snap := Snapshot{
		Sentence:     p.builder.Snapshot(),
		HoldLabel:    p.tracker.TrackedLabel(),
		HoldProgress: p.tracker.HoldProgress(now),
		At:           now,
	}
	if p.current != nil {
		d := *p.current
		snap.Current = &d
		snap.InCooldown = p.tracker.IsInCooldown(d.Label, now)
	}
	return snap
}

func (p *Pipeline) publishLocked() {
	snap := p.snapshotLocked()

	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot and replace it.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (p *Pipeline) advise(err error) error {
	p.metrics.RecordAdvisory(context.Background(), advisoryKind(err))
	p.logger.Info("advisory", "err", err)
	return err
}

func isAdvisory(err error) bool {
	return advisoryKind(err) != "other"
}
