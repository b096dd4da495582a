package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quoryx/quoryx-backend/internal/api/handlers"
	"github.com/quoryx/quoryx-backend/internal/api/middleware"
	"github.com/quoryx/quoryx-backend/internal/domain/intercompany"
	"github.com/quoryx/quoryx-backend/internal/domain/matcher"
	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	matcher    *matcher.Matcher
	detector   *intercompany.Detector
	lifecycle  *intercompany.Lifecycle
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, m *matcher.Matcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		logger:    logger,
		repo:      repo,
		matcher:   m,
		detector:  intercompany.NewDetector(repo, repo, logger),
		lifecycle: intercompany.NewLifecycle(repo, logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health checks (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.repo)
	s.router.Get("/health", healthHandler.Live)
	s.router.Get("/health/db", healthHandler.DB)

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.Handler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Transactions
		txnHandler := handlers.NewTransactionsHandler(s.repo, s.matcher, s.logger)
		r.Post("/transactions", txnHandler.Create)
		r.Get("/transactions", txnHandler.List)
		r.Get("/transactions/{id}", txnHandler.Get)
		r.Post("/transactions/{id}/reconcile", txnHandler.Reconcile)

		// Entities
		entitiesHandler := handlers.NewEntitiesHandler(s.repo, s.logger)
		r.Get("/entities", entitiesHandler.List)
		r.Post("/entities", entitiesHandler.Upsert)

		// Intercompany reconciliation
		reconHandler := handlers.NewReconciliationHandler(s.repo, s.detector, s.lifecycle, s.logger)
		r.Post("/reconciliation/detect", reconHandler.Detect)
		r.Get("/reconciliation/pairs", reconHandler.ListPairs)
		r.Patch("/reconciliation/pairs/{id}/status", reconHandler.UpdateStatus)
		r.Get("/reconciliation/summary", reconHandler.Summary)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
