// Package api exposes the compile service over HTTP: compile requests,
// status queries, artifact downloads, and the progress event stream.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/agentify/agentify/internal/artifact"
	"github.com/agentify/agentify/internal/compiler"
	"github.com/agentify/agentify/internal/errors"
	"github.com/agentify/agentify/internal/metrics"
	"github.com/agentify/agentify/internal/progress"
	"github.com/agentify/agentify/internal/spec"
)

// StatusProvider answers job status queries (the dispatcher in production).
type StatusProvider interface {
	GetStatus(ctx context.Context, jobID string) (*spec.CompilationJob, error)
}

// Compiler runs the orchestration flow for one request.
type Compiler interface {
	Compile(ctx context.Context, cfg *spec.AgentConfig, adv *spec.AdvancedSettings) (*compiler.Result, error)
}

// ArtifactResolver fetches the downloadable artifact of a completed job.
type ArtifactResolver interface {
	Resolve(ctx context.Context, jobID string) (*artifact.Resolved, error)
}

// Server is the HTTP front of the compile service.
type Server struct {
	Addr   string
	router *chi.Mux
	server *http.Server
	deps   Deps
}

// Deps carries the collaborators the handlers need. Status and Resolver
// may be nil when remote dispatch is not configured; their routes then
// answer with a configuration error.
type Deps struct {
	Compiler  Compiler
	Status    StatusProvider
	Resolver  ArtifactResolver
	Notifier  *progress.Notifier
	Registry  *prom.Registry
	Recorder  metrics.Recorder
	OutputDir string

	// WaitTimeoutCap bounds the POST /compile/status server-side wait.
	WaitTimeoutCap time.Duration
}

// NewServer wires routes and middleware around the dependencies.
func NewServer(addr string, deps Deps) *Server {
	if deps.WaitTimeoutCap <= 0 {
		deps.WaitTimeoutCap = 30 * time.Second
	}
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: the SSE stream outlives any sane value.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if s.deps.Registry != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.deps.Registry))
	}

	s.router.Post("/compile", s.handleCompile)
	s.router.Get("/compile/status", s.handleGetStatus)
	s.router.Post("/compile/status", s.handleWaitStatus)

	s.router.Get("/download/artifact/{jobId}", s.handleDownloadArtifact)
	s.router.Get("/download/plugin/{filename}", s.handleDownloadPlugin)

	if s.deps.Notifier != nil {
		stream := progress.SSEHandler(s.deps.Notifier)
		s.router.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			if s.deps.Recorder != nil {
				s.deps.Recorder.SetSSESubscribers(s.deps.Notifier.SubscriberCount() + 1)
				defer func() {
					s.deps.Recorder.SetSSESubscribers(s.deps.Notifier.SubscriberCount())
				}()
			}
			stream(w, r)
		})
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// errorResponse is the shape of every failed JSON endpoint: a success flag
// and a human-readable message, nothing nested.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Error writes an error response. The message is already human readable;
// internal detail never reaches the wire.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	s.JSON(w, code, errorResponse{Success: false, Message: message})
}

// JSON writes a response body as-is; each endpoint defines its own
// top-level shape.
func (s *Server) JSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// errorStatus maps error categories to HTTP status codes. A not-ready
// artifact is a 404: from the client's view the download simply does not
// exist yet.
func errorStatus(err error) int {
	switch errors.GetCategory(err) {
	case errors.CategoryValidation, errors.CategoryConfig:
		return http.StatusBadRequest
	case errors.CategoryNotFound, errors.CategoryNotReady:
		return http.StatusNotFound
	case errors.CategoryDispatch, errors.CategoryNetwork:
		return http.StatusBadGateway
	case errors.CategoryToolchain, errors.CategoryCompile:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage picks the safe, human-readable message for the wire.
func errorMessage(err error) string {
	var ae *errors.AgentifyError
	if stderrors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
