// Package server provides the HTTP server of the Mudra daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

// Session is the live translation session exposed over HTTP and WebSocket.
type Session interface {
	api.Session
	Subscribe() (<-chan translate.Snapshot, func())
}

// FrameSource provides the most recent camera frame as a JPEG.
type FrameSource interface {
	Latest() ([]byte, error)
}

// Config holds the server configuration. Routes whose dependencies are nil
// are not registered.
type Config struct {
	StaticDir        string
	Store            *store.Store
	Session          Session
	Ready            api.Readiness
	Registry         api.Registry
	DefaultTolerance float64
	Frames           FrameSource
	Metrics          http.Handler
	Logger           *slog.Logger
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		session := api.NewSessionHandler(s.config.Session, s.config.Ready, s.logger)
		s.mux.Handle("/api/session", session)
		s.mux.Handle("/api/session/", session)
		s.mux.Handle("/api/events", NewEventsHandler(s.config.Session, s.logger))
	}

	if s.config.Store != nil {
		history := api.NewHistoryHandler(s.config.Store, s.logger)
		s.mux.Handle("/api/history", history)
		s.mux.Handle("/api/history/", history)

		templates := api.NewTemplateHandler(s.config.Store, s.config.Registry, s.config.DefaultTolerance, s.logger)
		s.mux.Handle("/api/templates", templates)
		s.mux.Handle("/api/templates/", templates)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Ready != nil {
		response["model_ready"] = s.config.Ready.Ready()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
