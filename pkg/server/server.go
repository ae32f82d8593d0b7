// Package server exposes one workflow controller and its package editor as
// a JSON HTTP API, the programmatic counterpart of the interactive CLI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/capture"
	"github.com/jingkaihe/skillforge/pkg/editor"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/workflow"
)

// Server represents the API server
type Server struct {
	router     *mux.Router
	controller *workflow.Controller
	editor     *editor.Editor
	config     *ServerConfig
	server     *http.Server
}

// ServerConfig holds the configuration for the API server
type ServerConfig struct {
	Host string
	Port int
	// MaxUploadSize bounds uploaded media. Zero means capture.DefaultMaxSize.
	MaxUploadSize int64
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadSize < 0 {
		return errors.Errorf("max upload size cannot be negative, got %d", c.MaxUploadSize)
	}
	return nil
}

func (c *ServerConfig) maxUpload() int64 {
	if c.MaxUploadSize == 0 {
		return capture.DefaultMaxSize
	}
	return c.MaxUploadSize
}

// NewServer creates a server over ctrl and ed. ed is expected to be
// attached to ctrl.
func NewServer(ctrl *workflow.Controller, ed *editor.Editor, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}
	if ctrl == nil || ed == nil {
		return nil, errors.New("server requires a controller and an editor")
	}

	s := &Server{
		router:     mux.NewRouter(),
		controller: ctrl,
		editor:     ed,
		config:     config,
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/capture/start", s.handleStartCapture).Methods("POST")
	api.HandleFunc("/capture/stop", s.handleStopCapture).Methods("POST")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/discard", s.handleDiscard).Methods("POST")
	api.HandleFunc("/notes", s.handleSetNotes).Methods("PUT")
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/dismiss", s.handleDismiss).Methods("POST")
	api.HandleFunc("/new", s.handleStartNew).Methods("POST")
	api.HandleFunc("/export", s.handleExportCurrent).Methods("GET")

	api.HandleFunc("/history", s.handleListHistory).Methods("GET")
	api.HandleFunc("/history/{id}", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/history/{id}", s.handleDeleteHistory).Methods("DELETE")
	api.HandleFunc("/history/{id}/select", s.handleSelectHistory).Methods("POST")
	api.HandleFunc("/history/{id}/export", s.handleExportHistory).Methods("GET")

	api.HandleFunc("/editor", s.handleEditor).Methods("GET")
	api.HandleFunc("/editor/active", s.handleSetActiveFile).Methods("PUT")
	api.HandleFunc("/editor/diff", s.handleDiff).Methods("GET")
	api.HandleFunc("/editor/revert", s.handleRevert).Methods("POST")
	api.HandleFunc("/editor/commit", s.handleCommit).Methods("POST")
	api.HandleFunc("/editor/files/{name:.+}", s.handleGetFile).Methods("GET")
	api.HandleFunc("/editor/files/{name:.+}", s.handleEditFile).Methods("PUT")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, r *http.Request, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse maps err to a status code and writes it as JSON.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	log := logger.G(r.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Error(message)
	} else {
		log.Debug(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Error:   message,
		Detail:  err.Error(),
		Kind:    errorKind(err),
		Status:  status,
		Success: false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode error response")
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	presenter.Info(fmt.Sprintf("Serving the skillforge API on http://%s/api", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Close stops a running server and abandons any capture in progress.
func (s *Server) Close() error {
	var err error
	if s.server != nil {
		err = s.server.Close()
	}
	if cerr := s.controller.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
