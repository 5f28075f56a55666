package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/observe"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

var (
	serveAddr     string
	serveNoCamera bool
	serveTray     bool
	serveAutoAdd  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation daemon",
	Long: `Run the camera loop, the translation pipeline and the HTTP API.

The in-progress sentence is flushed to history on shutdown (SIGINT/SIGTERM
or the tray's Quit item).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Server.ListenAddr = serveAddr
		}
		if serveNoCamera {
			cfg.Camera.Enabled = false
		}
		if flags.Changed("tray") {
			cfg.Tray.Enabled = serveTray
		}
		if flags.Changed("auto-add") {
			cfg.Recognition.AutoAdd = serveAutoAdd
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.listen_addr)")
	serveCmd.Flags().BoolVar(&serveNoCamera, "no-camera", false, "run without a camera")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show the system tray icon")
	serveCmd.Flags().BoolVar(&serveAutoAdd, "auto-add", false, "start with auto-add enabled")
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	metricsHandler, shutdownMetrics, err := observe.InitProvider()
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("history database opened", "path", st.Path())

	a, err := app.New(app.Config{Settings: cfg, Store: st, Logger: logger})
	if err != nil {
		return err
	}
	if err := a.LoadTemplates(); err != nil {
		logger.Warn("failed to load templates", "err", err)
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("failed to discover plugins", "err", err)
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	srvCfg := server.Config{
		StaticDir:        staticDir,
		Store:            st,
		Session:          a.Pipeline(),
		Ready:            a.Classifier(),
		Registry:         a,
		DefaultTolerance: cfg.Recognition.TemplateTolerance,
		Metrics:          metricsHandler,
		Logger:           logger,
	}
	if cfg.Camera.Enabled {
		srvCfg.Frames = a.Grabber()
	}
	srv := server.New(srvCfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var t *tray.Tray
	if cfg.Tray.Enabled {
		t = tray.New(a.Pipeline(), logger)
		t.OnCamera(a.SetEnabled)
		t.OnOpen(func() { openBrowser(browserURL(cfg.Server.ListenAddr), logger) })
		t.OnQuit(stop)
	}

	done := make(chan error, 1)
	go func() {
		done <- runUntilDone(ctx, cfg.Server.ListenAddr, srv, a, func() {
			if t != nil {
				t.Quit()
			}
		})
	}()

	if t != nil {
		// The tray owns the main thread until Quit.
		t.Run()
		stop()
	}

	err = <-done
	logger.Info("mudra stopped")
	return err
}

// shutdownTimeout bounds the final history flush.
const shutdownTimeout = 15 * time.Second

type listener interface {
	Serve(ctx context.Context, addr string) error
}

type daemon interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// runUntilDone serves HTTP and runs the frame loop until ctx is done or
// either fails. onDone is called once ctx is done. The daemon is shut down
// only after both have returned, so no sample reaches the pipeline after
// the final flush.
func runUntilDone(ctx context.Context, addr string, srv listener, d daemon, onDone func()) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, addr)
	})
	g.Go(func() error {
		return d.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if onDone != nil {
			onDone()
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(err, d.Shutdown(shutdownCtx))
}

// findWebDir looks for the web UI next to the working directory and in the
// data directory.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	dir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open browser", "url", url, "err", err)
		return
	}
	go cmd.Wait()
}
