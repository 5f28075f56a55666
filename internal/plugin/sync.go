package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/observe"
	"github.com/ayusman/mudra/internal/translate"
)

// DefaultParallelism is the default number of plugins run concurrently.
const DefaultParallelism = 4

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	Manager  *Manager
	Executor *Executor

	// Plugins names the plugins notified on every save, in order.
	Plugins []string

	// Settings holds the per-plugin config sent with each request.
	Settings map[string]json.RawMessage

	// Parallelism caps how many plugins run at once. Zero selects
	// DefaultParallelism.
	Parallelism int

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Syncer notifies the configured plugins about saved translations.
type Syncer struct {
	manager  *Manager
	executor *Executor
	plugins  []string
	settings map[string]json.RawMessage
	logger   *slog.Logger
	metrics  *observe.Metrics
	limit    int

	wg sync.WaitGroup

	mu   sync.Mutex
	last dispatched
}

// dispatched identifies the content of the last dispatched translation.
type dispatched struct {
	id       string
	sentence string
	signs    int
}

// NewSyncer creates a Syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.Executor == nil {
		cfg.Executor = NewExecutor(DefaultTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Syncer{
		manager:  cfg.Manager,
		executor: cfg.Executor,
		plugins:  cfg.Plugins,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		limit:    cfg.Parallelism,
	}
}

// Enabled reports whether any plugin is configured.
func (s *Syncer) Enabled() bool {
	return s.manager != nil && len(s.plugins) > 0
}

// Notify runs every configured plugin, at most Parallelism at a time, and
// waits for all of them. The returned error joins the failures of
// individual plugins.
func (s *Syncer) Notify(ctx context.Context, t translate.Translation) error {
	if !s.Enabled() {
		return nil
	}

	payload := NewTranslation(t)
	errs := make([]error, len(s.plugins))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, name := range s.plugins {
		i, name := i, name
		g.Go(func() error {
			errs[i] = s.run(ctx, name, payload)
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return errors.Join(errs...)
}

// Dispatch notifies the plugins in the background. Failures are logged.
// A translation identical to the last dispatched one is skipped, so
// re-flushing an unchanged sentence does not run the plugins again.
func (s *Syncer) Dispatch(t translate.Translation) {
	if !s.Enabled() {
		return
	}

	cur := dispatched{id: t.ID, sentence: t.Sentence, signs: len(t.Signs)}
	s.mu.Lock()
	if cur == s.last {
		s.mu.Unlock()
		s.logger.Debug("translation unchanged since last sync", "translation", t.ID)
		return
	}
	s.last = cur
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Notify(context.Background(), t); err != nil {
			s.logger.Warn("sync failed", "translation", t.ID, "err", err)
		}
	}()
}

// Wait blocks until every dispatched notification has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) run(ctx context.Context, name string, payload *Translation) error {
	p, err := s.manager.Get(name)
	if err != nil {
		s.metrics.RecordSync(ctx, name, "missing")
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	if !p.Manifest.Handles(ActionTranslationSaved) {
		s.logger.Debug("plugin does not handle action", "plugin", name, "action", ActionTranslationSaved)
		s.metrics.RecordSync(ctx, name, "skipped")
		return nil
	}

	resp, err := s.executor.Execute(ctx, p, &Request{
		Action:      ActionTranslationSaved,
		Translation: payload,
		Config:      s.settings[name],
	})
	if err != nil {
		s.metrics.RecordSync(ctx, name, "error")
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	if !resp.Success {
		s.metrics.RecordSync(ctx, name, "rejected")
		return fmt.Errorf("plugin %s: %s", name, resp.Error)
	}

	s.metrics.RecordSync(ctx, name, "ok")
	s.logger.Debug("plugin synced translation", "plugin", name, "translation", payload.ID)
	return nil
}
