// Package config provides the configuration schema and loader for the Mudra
// daemon.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DetectorKind selects the hand landmark detector.
type DetectorKind string

const (
	// DetectorAuto tries MediaPipe and falls back to the mock detector.
	DetectorAuto      DetectorKind = "auto"
	DetectorMediaPipe DetectorKind = "mediapipe"
	DetectorMock      DetectorKind = "mock"
)

// IsValid reports whether k is a recognised detector kind.
func (k DetectorKind) IsValid() bool {
	switch k {
	case DetectorAuto, DetectorMediaPipe, DetectorMock:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Recognition RecognitionConfig `yaml:"recognition"`
	History     HistoryConfig     `yaml:"history"`
	Sync        SyncConfig        `yaml:"sync"`
	Tray        TrayConfig        `yaml:"tray"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// StaticDir is served at "/" when set. Empty means auto-detect a web/ dir.
	StaticDir string `yaml:"static_dir"`

	LogLevel LogLevel `yaml:"log_level"`
}

// CameraConfig selects and tunes the capture device.
type CameraConfig struct {
	DeviceID int  `yaml:"device_id"`
	FPS      int  `yaml:"fps"`
	Enabled  bool `yaml:"enabled"`

	// JPEGQuality is used for captured sign images and the preview stream.
	JPEGQuality int `yaml:"jpeg_quality"`
}

// DetectorConfig configures hand landmark detection.
type DetectorConfig struct {
	Kind DetectorKind `yaml:"kind"`

	// PythonPath and ScriptPath override MediaPipe discovery.
	PythonPath string `yaml:"python_path"`
	ScriptPath string `yaml:"script_path"`

	MinConfidence float64 `yaml:"min_confidence"`
}

// RecognitionConfig holds the stabilisation and auto-add thresholds.
type RecognitionConfig struct {
	StabilityThreshold  int     `yaml:"stability_threshold"`
	DisplayConfidence   float64 `yaml:"display_confidence"`
	ManualMinConfidence float64 `yaml:"manual_min_confidence"`

	AutoAdd              bool          `yaml:"auto_add"`
	AutoAddMinConfidence float64       `yaml:"auto_add_min_confidence"`
	HoldDuration         time.Duration `yaml:"hold_duration"`
	Cooldown             time.Duration `yaml:"cooldown"`
	DuplicateWindow      time.Duration `yaml:"duplicate_window"`

	// CaptureTimeout bounds the frame capture for one committed sign.
	CaptureTimeout time.Duration `yaml:"capture_timeout"`

	// TemplateTolerance is the default match distance for new sign templates.
	TemplateTolerance float64 `yaml:"template_tolerance"`
}

// HistoryConfig configures the translation history database.
type HistoryConfig struct {
	Database   string `yaml:"database"`
	MaxEntries int    `yaml:"max_entries"`
}

// SyncConfig configures the post-save sync plugins.
type SyncConfig struct {
	PluginDir string `yaml:"plugin_dir"`

	// Plugins lists the plugin names to notify. Empty means none.
	Plugins []string `yaml:"plugins"`

	// Settings holds per-plugin options passed through as the request config.
	Settings map[string]map[string]any `yaml:"settings"`

	Timeout time.Duration `yaml:"timeout"`

	// Parallelism caps how many plugins run at once. Zero means the default.
	Parallelism int `yaml:"parallelism"`
}

// TrayConfig toggles the system tray icon.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DataDir returns the per-user data directory (~/.mudra), or ".mudra" when
// the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// Default returns the configuration used when no file is given. Values in a
// loaded file override these.
func Default() *Config {
	dir := DataDir()
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Camera: CameraConfig{
			DeviceID:    0,
			FPS:         15,
			Enabled:     true,
			JPEGQuality: 80,
		},
		Detector: DetectorConfig{
			Kind:          DetectorAuto,
			MinConfidence: 0.5,
		},
		Recognition: RecognitionConfig{
			StabilityThreshold:   3,
			DisplayConfidence:    0.6,
			ManualMinConfidence:  0.70,
			AutoAdd:              false,
			AutoAddMinConfidence: 0.70,
			HoldDuration:         1000 * time.Millisecond,
			Cooldown:             800 * time.Millisecond,
			DuplicateWindow:      1500 * time.Millisecond,
			CaptureTimeout:       2 * time.Second,
			TemplateTolerance:    0.15,
		},
		History: HistoryConfig{
			Database:   filepath.Join(dir, "mudra.db"),
			MaxEntries: 100,
		},
		Sync: SyncConfig{
			PluginDir: filepath.Join(dir, "plugins"),
			Timeout:   5 * time.Second,
		},
		Tray: TrayConfig{
			Enabled: false,
		},
	}
}
