package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path on top of [Default] and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates it. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Camera.FPS <= 0 || cfg.Camera.FPS > 60 {
		errs = append(errs, fmt.Errorf("camera.fps %d is out of range [1, 60]", cfg.Camera.FPS))
	}
	if cfg.Camera.JPEGQuality < 1 || cfg.Camera.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("camera.jpeg_quality %d is out of range [1, 100]", cfg.Camera.JPEGQuality))
	}

	if !cfg.Detector.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("detector.kind %q is invalid; valid values: auto, mediapipe, mock", cfg.Detector.Kind))
	}

	rec := cfg.Recognition
	if rec.StabilityThreshold < 1 {
		errs = append(errs, fmt.Errorf("recognition.stability_threshold %d must be at least 1", rec.StabilityThreshold))
	}
	for name, v := range map[string]float64{
		"recognition.display_confidence":      rec.DisplayConfidence,
		"recognition.manual_min_confidence":   rec.ManualMinConfidence,
		"recognition.auto_add_min_confidence": rec.AutoAddMinConfidence,
		"detector.min_confidence":             cfg.Detector.MinConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", name, v))
		}
	}
	if rec.HoldDuration <= 0 {
		errs = append(errs, fmt.Errorf("recognition.hold_duration %s must be positive", rec.HoldDuration))
	}
	if rec.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("recognition.cooldown %s must not be negative", rec.Cooldown))
	}
	if rec.DuplicateWindow < 0 {
		errs = append(errs, fmt.Errorf("recognition.duplicate_window %s must not be negative", rec.DuplicateWindow))
	}
	if rec.TemplateTolerance <= 0 {
		errs = append(errs, fmt.Errorf("recognition.template_tolerance %.2f must be positive", rec.TemplateTolerance))
	}

	if cfg.History.Database == "" {
		errs = append(errs, errors.New("history.database is required"))
	}
	if cfg.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries %d must not be negative", cfg.History.MaxEntries))
	}

	if len(cfg.Sync.Plugins) > 0 && cfg.Sync.PluginDir == "" {
		errs = append(errs, errors.New("sync.plugin_dir is required when sync.plugins is set"))
	}
	seen := make(map[string]int, len(cfg.Sync.Plugins))
	for i, name := range cfg.Sync.Plugins {
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("sync.plugins[%d] %q is a duplicate of sync.plugins[%d]", i, name, prev))
		}
		seen[name] = i
	}
	for name := range cfg.Sync.Settings {
		if _, ok := seen[name]; !ok {
			errs = append(errs, fmt.Errorf("sync.settings has an entry for %q which is not in sync.plugins", name))
		}
	}
	if cfg.Sync.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("sync.parallelism %d must not be negative", cfg.Sync.Parallelism))
	}
	if cfg.Sync.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("sync.timeout %s must be positive", cfg.Sync.Timeout))
	}

	return errors.Join(errs...)
}
