package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/storage"
)

// Engine is the session engine behind the HTTP API.
type Engine interface {
	Start(ctx context.Context, code, language string) (*runner.Result, error)
	SubmitInput(ctx context.Context, id, text string) (*runner.Result, error)
	Poll(ctx context.Context, id string) (*runner.Result, error)
	Terminate(ctx context.Context, id string) (*runner.Result, error)
	Languages() []string
}

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	// PollInterval is how often websocket streams poll their session.
	PollInterval time.Duration
}

// Server is the HTTP server for the runbox API.
type Server struct {
	engine Engine
	store  storage.Store // nil when history is disabled
	logger *zap.Logger
	opts   Options
	router chi.Router
	http   *http.Server
}

// New creates a new Server. store may be nil.
func New(engine Engine, store storage.Store, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}

	s := &Server{
		engine: engine,
		store:  store,
		logger: logger,
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		// WebSocket (no JSON content-type)
		r.Get("/sessions/{id}/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			// Session lifecycle
			r.Post("/execute", s.handleExecute)
			r.Post("/input", s.handleInput)
			r.Get("/status/{id}", s.handleStatus)
			r.Post("/terminate/{id}", s.handleTerminate)
			r.Get("/languages", s.handleLanguages)

			// Run history
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Delete("/runs/{id}", s.handleDeleteRun)
		})
		r.Get("/runs/{id}/export", s.handleExportRun)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("runbox server starting", zap.String("addr", "http://localhost"+addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
