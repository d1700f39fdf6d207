// Package server is the composition root of the HTTP API: it opens the
// history database, builds the service and handlers and mounts them on a chi
// router.
//
//	GET  /healthz                 liveness (+ database ping)
//	GET  /metrics                 Prometheus exposition
//	GET  /api/languages           supported languages
//	POST /api/execute             run a program
//	GET  /api/executions          history, newest first
//	GET  /api/executions/{id}     one history entry
//
// When a JWT secret is configured every /api route requires a bearer token.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/coderunner/internal/auth"
	"github.com/sakif/coderunner/internal/executor"
	"github.com/sakif/coderunner/internal/handler"
	"github.com/sakif/coderunner/internal/language"
	"github.com/sakif/coderunner/internal/metrics"
	"github.com/sakif/coderunner/internal/middleware"
	"github.com/sakif/coderunner/internal/repository"
	sqliteRepo "github.com/sakif/coderunner/internal/repository/sqlite"
	"github.com/sakif/coderunner/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// DBPath is the history database; empty disables history.
	DBPath       string
	HistoryLimit int

	MaxSourceBytes int
	// JWTSecret enables bearer-token auth on /api.
	JWTSecret string
}

// Deps are the long-lived components built by the caller.
type Deps struct {
	Executor executor.Executor
	Registry *language.Registry
	// Metrics is optional; without it /metrics is not mounted.
	Metrics *metrics.Metrics
}

// Server owns the router and the history database.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens storage and wires every route.
func New(cfg Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if deps.Executor == nil || deps.Registry == nil {
		return nil, errors.New("server: executor and registry are required")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}

	if cfg.DBPath != "" {
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.db = db
	}

	if err := s.setupRoutes(deps); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Safe to call when history is disabled.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// setupRoutes mounts middleware and handlers. Order matters: RequestID must
// precede Logger so every access line carries the id.
func (s *Server) setupRoutes(deps Deps) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// A nil *sqlite.DB inside the interfaces would not compare equal to nil.
	var (
		repo   repository.ExecutionRepository
		pinger handler.Pinger
	)
	if s.db != nil {
		repo = s.db
		pinger = s.db
	}

	executionService := service.NewExecutionService(deps.Executor, repo, s.logger, service.Options{
		MaxSourceBytes: s.config.MaxSourceBytes,
		HistoryLimit:   s.config.HistoryLimit,
	})
	executeHandler := handler.NewExecuteHandler(executionService, s.config.MaxSourceBytes, s.logger)
	executionHandler := handler.NewExecutionHandler(executionService, s.logger)
	languagesHandler := handler.NewLanguagesHandler(deps.Registry)
	healthHandler := handler.NewHealthHandler(pinger, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	if deps.Metrics != nil {
		s.router.Handle("/metrics", deps.Metrics.Handler())
	}

	var requireToken func(http.Handler) http.Handler
	if s.config.JWTSecret != "" {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		requireToken = auth.RequireToken(tokens)
	} else {
		s.logger.Warn("auth.jwt_secret not set, /api is unauthenticated")
	}

	s.router.Route("/api", func(r chi.Router) {
		if requireToken != nil {
			r.Use(requireToken)
		}
		r.Get("/languages", languagesHandler.HandleList)
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/executions", executionHandler.HandleList)
		r.Get("/executions/{id}", executionHandler.HandleGetByID)
	})

	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests and
// closes the database.
func (s *Server) Start() error {
	defer s.Close()

	// Request contexts derive from base, so canceling it kills every
	// running execution's processes.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return base },
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.JWTSecret != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			// Drain deadline passed: cancel running executions and give
			// their handlers a moment to reap children and respond.
			s.logger.Warn("canceling in-flight executions", slog.String("error", err.Error()))
			cancelBase()
			killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer killCancel()
			if err := srv.Shutdown(killCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
