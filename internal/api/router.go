package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"setuptask/internal/core"
	"setuptask/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the HTTP driver surface over the orchestration core.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      *store.Store
	registry   *core.Registry
	engine     *core.Engine
	reporter   *core.Reporter
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the HTTP API server.
func NewServer(addr, authToken string, st *store.Store, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		store:     st,
		registry:  registry,
		engine:    engine,
		reporter:  reporter,
		logger:    logger,
		authToken: authToken,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Post("/run", s.handleRunTask)
			})
		})

		r.Get("/progress", s.handleProgress)
		r.Get("/history", s.handleListHistory)
		r.Get("/runs/{runID}/log", s.handleRunLog)

		r.Get("/state", s.handleGetState)
		r.Post("/state/reset", s.handleResetState)
	})
}
