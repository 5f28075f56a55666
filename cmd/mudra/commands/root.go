// Package commands implements the mudra command line.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/observe"
	"github.com/ayusman/mudra/internal/store"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	// Global flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Sign language to text translator",
	Long: `mudra - turns hand signs seen by a camera into text.

The daemon stabilises per-frame sign classifications, commits letters to a
sentence (by hand or with auto-add after a steady hold) and keeps a history
of saved sentences in a local SQLite database.

Configuration is read from ~/.mudra/config.yaml unless --config is given;
a missing file means defaults.

Examples:
  # Run the daemon with the web UI on :8080
  mudra serve

  # Run without a camera, injecting classifications over HTTP
  mudra serve --no-camera --addr 127.0.0.1:9000

  # Inspect the history
  mudra history list --limit 10`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.mudra/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mudra %s\n", Version)
	},
}

// loadSettings reads the configuration selected by the global flags.
func loadSettings() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(config.DataDir(), "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(logLevel)
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return observe.NewLogger(string(cfg.Server.LogLevel))
}

// openStore opens the history database, creating its directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.Database), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(cfg.History.Database, store.WithMaxEntries(cfg.History.MaxEntries))
}
