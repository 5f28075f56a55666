// Package app wires the camera, hand detector, sign classifier and
// translation pipeline into the running daemon.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/clock"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/observe"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

// Config holds the dependencies of an App. Only Settings and Store are
// required; the rest are built from Settings when nil.
type Config struct {
	Settings *config.Config
	Store    *store.Store

	Camera   capture.Camera
	Detector detector.Detector
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *observe.Metrics
}

// App is the running daemon: a frame loop feeding a translation pipeline.
type App struct {
	settings *config.Config
	store    *store.Store
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *observe.Metrics

	camera     capture.Camera
	grabber    *capture.Grabber
	detector   detector.Detector
	classifier *gesture.TemplateClassifier
	trainer    *gesture.Trainer
	pluginMgr  *plugin.Manager
	syncer     *plugin.Syncer
	pipeline   *translate.Pipeline

	mu      sync.RWMutex
	enabled bool
}

// New builds an App from cfg.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, errors.New("app: settings are required")
	}
	if cfg.Store == nil {
		return nil, errors.New("app: store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := cfg.Settings

	a := &App{
		settings:   s,
		store:      cfg.Store,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		camera:     cfg.Camera,
		grabber:    capture.NewGrabber(s.Camera.JPEGQuality),
		detector:   cfg.Detector,
		classifier: gesture.NewTemplateClassifier(),
		trainer:    gesture.NewTrainer(),
		pluginMgr:  plugin.NewManager(s.Sync.PluginDir, cfg.Logger),
		enabled:    true,
	}

	if a.camera == nil && s.Camera.Enabled {
		a.camera = capture.NewCamera(s.Camera.DeviceID, s.Camera.FPS)
	}
	if a.detector == nil {
		d, err := newDetector(s.Detector, cfg.Logger)
		if err != nil {
			return nil, err
		}
		a.detector = d
	}

	settings, err := pluginSettings(s.Sync.Settings)
	if err != nil {
		return nil, err
	}
	a.syncer = plugin.NewSyncer(plugin.SyncerConfig{
		Manager:     a.pluginMgr,
		Executor:    plugin.NewExecutor(s.Sync.Timeout),
		Plugins:     s.Sync.Plugins,
		Settings:    settings,
		Parallelism: s.Sync.Parallelism,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})

	a.pipeline = translate.NewPipeline(a.pipelineConfig())
	return a, nil
}

func (a *App) pipelineConfig() translate.Config {
	rec := a.settings.Recognition
	cfg := translate.Config{
		Clock:               a.clock,
		StabilityThreshold:  rec.StabilityThreshold,
		DisplayConfidence:   rec.DisplayConfidence,
		ManualMinConfidence: rec.ManualMinConfidence,
		AutoAdd:             rec.AutoAdd,
		Tracker: translate.TrackerConfig{
			MinConfidence:   rec.AutoAddMinConfidence,
			HoldDuration:    rec.HoldDuration,
			Cooldown:        rec.Cooldown,
			DuplicateWindow: rec.DuplicateWindow,
		},
		History:        &historySink{repo: a.store.Translations(), syncer: a.syncer},
		CaptureTimeout: rec.CaptureTimeout,
		Logger:         a.logger.With("component", "pipeline"),
		Metrics:        a.metrics,
	}
	if a.camera != nil {
		cfg.Capturer = a.grabber
	}
	return cfg
}

// newDetector selects the hand detector for kind.
func newDetector(cfg config.DetectorConfig, logger *slog.Logger) (detector.Detector, error) {
	dc := detector.DefaultConfig()
	dc.PythonPath = cfg.PythonPath
	dc.ScriptPath = cfg.ScriptPath
	if cfg.MinConfidence > 0 {
		dc.MinConfidence = cfg.MinConfidence
	}

	switch cfg.Kind {
	case config.DetectorMock:
		logger.Info("using mock hand detector")
		return detector.NewMockDetector(), nil
	case config.DetectorMediaPipe:
		d, err := detector.NewMediaPipeDetector(dc, logger)
		if err != nil {
			return nil, fmt.Errorf("mediapipe detector: %w", err)
		}
		return d, nil
	default:
		d, err := detector.NewMediaPipeDetector(dc, logger)
		if err != nil {
			logger.Warn("MediaPipe not available, using mock detector", "err", err)
			return detector.NewMockDetector(), nil
		}
		logger.Info("using MediaPipe hand detection")
		return d, nil
	}
}

func pluginSettings(in map[string]map[string]any) (map[string]json.RawMessage, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for name, v := range in {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("sync.settings.%s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// DiscoverPlugins scans the plugin directory and warns about configured
// sync plugins that were not found.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	for _, name := range a.settings.Sync.Plugins {
		if _, err := a.pluginMgr.Get(name); err != nil {
			a.logger.Warn("configured sync plugin not found", "plugin", name, "dir", a.pluginMgr.PluginDir())
		}
	}
	return nil
}

// SetEnabled pauses or resumes frame processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Shutdown flushes the in-progress sentence to history, stops the pipeline
// and waits for pending captures and sync notifications. Call it after Run
// has returned; samples arriving later are dropped.
func (a *App) Shutdown(ctx context.Context) error {
	flushed, err := a.pipeline.Shutdown(ctx)
	if err != nil {
		a.logger.Error("failed to flush sentence on shutdown", "err", err)
	} else if flushed {
		a.logger.Info("flushed sentence on shutdown")
	}

	a.pipeline.WaitCaptures()
	a.syncer.Wait()

	if cerr := a.detector.Close(); cerr != nil {
		a.logger.Warn("error closing detector", "err", cerr)
	}
	return err
}

// Pipeline returns the translation pipeline.
func (a *App) Pipeline() *translate.Pipeline {
	return a.pipeline
}

// Classifier returns the sign classifier.
func (a *App) Classifier() *gesture.TemplateClassifier {
	return a.classifier
}

// Grabber returns the latest-frame holder used for captures and the preview.
func (a *App) Grabber() *capture.Grabber {
	return a.grabber
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}
