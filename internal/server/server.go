// Package server exposes the HTTP API for starting operations and polling
// their progress. Authentication, rate limiting and security headers live
// here; the engine behind the handlers trusts this boundary.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/unzipd/unzipd/internal/operation"
	"github.com/unzipd/unzipd/internal/pathguard"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Port int
	Bind string

	AuthEnabled  bool
	AuthUsername string
	AuthPassword string

	RateLimitEnabled bool
	RequestsPerMin   int
	Burst            int
}

// ExtractRequest is the body for POST /api/operations/extract.
type ExtractRequest struct {
	Root     string `json:"root"`
	Policy   string `json:"conflict_policy,omitempty"`
	Parallel *bool  `json:"parallel,omitempty"`
}

// CleanupRequest is the body for POST /api/operations/cleanup.
type CleanupRequest struct {
	Root string `json:"root"`
}

// StartResponse is returned when an operation is accepted.
type StartResponse struct {
	OperationID string `json:"operation_id"`
}

// StartExtractFunc starts an extraction operation and returns its id.
type StartExtractFunc func(ctx context.Context, req ExtractRequest) (string, error)

// StartCleanupFunc starts a cleanup operation and returns its id.
type StartCleanupFunc func(ctx context.Context, root string) (string, error)

// SnapshotFunc returns the snapshot of one operation.
type SnapshotFunc func(id string) (operation.Snapshot, error)

// ListFunc returns snapshots of all tracked operations.
type ListFunc func() []operation.Snapshot

// Server is the HTTP server for the operations API.
// It is safe for concurrent use.
type Server struct {
	mu             sync.RWMutex
	config         Config
	logger         *slog.Logger
	server         *http.Server
	router         *chi.Mux
	limiter        *clientLimiter
	metricsHandler http.Handler
	extractFunc    StartExtractFunc
	cleanupFunc    StartCleanupFunc
	snapshotFunc   SnapshotFunc
	listFunc       ListFunc
}

// New creates a new HTTP server with the given config.
func New(config Config, logger *slog.Logger) *Server {
	s := &Server{
		config: config,
		logger: logger,
		router: chi.NewRouter(),
	}
	if config.RateLimitEnabled {
		s.limiter = newClientLimiter(config.RequestsPerMin, config.Burst)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
	if s.config.AuthEnabled {
		s.router.Use(basicAuth(s.config.AuthUsername, s.config.AuthPassword))
	}

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Post("/api/operations/extract", s.handleExtract)
	s.router.Post("/api/operations/cleanup", s.handleCleanup)
	s.router.Get("/api/operations", s.handleList)
	s.router.Get("/api/operations/{id}", s.handleSnapshot)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}
}

// SetMetricsHandler sets the Prometheus metrics handler.
func (s *Server) SetMetricsHandler(handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsHandler = handler
	// Re-setup routes to include metrics
	s.router = chi.NewRouter()
	s.setupRoutes()
}

// SetExtractFunc sets the function to call when an extraction is requested.
func (s *Server) SetExtractFunc(fn StartExtractFunc) {
	s.extractFunc = fn
}

// SetCleanupFunc sets the function to call when a cleanup is requested.
func (s *Server) SetCleanupFunc(fn StartCleanupFunc) {
	s.cleanupFunc = fn
}

// SetSnapshotFunc sets the function to call when a snapshot is requested.
func (s *Server) SetSnapshotFunc(fn SnapshotFunc) {
	s.snapshotFunc = fn
}

// SetListFunc sets the function to call when the operation list is requested.
func (s *Server) SetListFunc(fn ListFunc) {
	s.listFunc = fn
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// LivezResponse is the response format for the /healthz endpoint.
type LivezResponse struct {
	Status string `json:"status"`
}

// handleHealthz handles the /healthz endpoint (liveness probe).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LivezResponse{Status: "alive"})
}

// handleExtract handles POST /api/operations/extract.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.extractFunc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "extraction not available")
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Root == "" {
		writeJSONError(w, http.StatusBadRequest, "root is required")
		return
	}

	id, err := s.extractFunc(r.Context(), req)
	if err != nil {
		writeStartError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(StartResponse{OperationID: id})
}

// handleCleanup handles POST /api/operations/cleanup.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.cleanupFunc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cleanup not available")
		return
	}

	var req CleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Root == "" {
		writeJSONError(w, http.StatusBadRequest, "root is required")
		return
	}

	id, err := s.cleanupFunc(r.Context(), req.Root)
	if err != nil {
		writeStartError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(StartResponse{OperationID: id})
}

// handleSnapshot handles GET /api/operations/{id}.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.snapshotFunc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "snapshots not available")
		return
	}

	snap, err := s.snapshotFunc(chi.URLParam(r, "id"))
	if err != nil {
		var nfe *operation.NotFoundError
		if errors.As(err, &nfe) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}

// handleList handles GET /api/operations.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.listFunc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "operation list not available")
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.listFunc())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// writeStartError maps start failures to HTTP status codes. A rejected root
// is the caller's fault; anything else is a server problem.
func writeStartError(w http.ResponseWriter, err error) {
	var pre *pathguard.PathRejectedError
	if errors.As(err, &pre) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

// Start starts the HTTP server and blocks until it's stopped.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}

	return nil
}
