// Package server provides the HTTP dashboard for pinchvol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/pinchvol/internal/display"
	"github.com/ayusman/pinchvol/internal/server/api"
)

const shutdownTimeout = 5 * time.Second

// Controller is the session controller behind the dashboard.
type Controller interface {
	api.Controller
	Bridge() *display.Bridge
}

// Config holds the server configuration.
type Config struct {
	StaticDir    string
	App          Controller
	PushInterval time.Duration
	Logger       *slog.Logger
}

// Server represents the HTTP server for the dashboard.
type Server struct {
	config  Config
	mux     *http.ServeMux
	start   time.Time
	logger  *slog.Logger
	display *DisplayHandler
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
		logger: logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		sessions := api.NewSessionHandler(s.config.App)
		s.mux.Handle("/api/session", sessions)
		s.mux.Handle("/api/session/", sessions)
		s.mux.Handle("/api/sessions", sessions)

		s.mux.Handle("/api/settings/calibration", api.NewCalibrationHandler(s.config.App))

		s.display = NewDisplayHandler(s.config.App.Bridge(), s.config.PushInterval, s.logger)
		s.mux.Handle("/api/display", s.display)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
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

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["state"] = s.config.App.Status().State
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.display != nil {
		s.display.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
