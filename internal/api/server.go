// Package api wires the gin HTTP surface over the reconciliation services.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/handlers"
	"bank-reconciliation-backend/internal/api/middleware"
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/application/reporting"
	"bank-reconciliation-backend/internal/application/workflow"
	"bank-reconciliation-backend/internal/infrastructure/storage"
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

// Services bundles the application services the handlers depend on.
type Services struct {
	Pipeline  *importer.Pipeline
	Workflow  *workflow.Workflow
	Reporting *reporting.Service
	Repo      storage.Repository

	// ImportDefaults holds the configured engine parameters applied when
	// an import request leaves them unset.
	ImportDefaults importer.Options
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		router:   router,
		logger:   logger,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.CORS(s.config.AllowedOrigins))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	healthHandler := handlers.NewHealthHandler()
	api.GET("/health", healthHandler.Get)

	reconciliationHandler := handlers.NewReconciliationHandler(
		s.services.Pipeline, s.services.Workflow, s.services.Repo, s.services.ImportDefaults)
	api.POST("/reconciliation/import", reconciliationHandler.Import)
	api.POST("/reconciliation/manual", reconciliationHandler.Manual)
	api.POST("/reconciliation/:id/approve", reconciliationHandler.Approve)
	api.POST("/reconciliation/:id/reject", reconciliationHandler.Reject)
	api.GET("/reconciliation", reconciliationHandler.List)
	api.GET("/reconciliation/runs", reconciliationHandler.ListRuns)
	api.GET("/reconciliation/:id", reconciliationHandler.Get)

	movementsHandler := handlers.NewMovementsHandler(s.services.Repo)
	api.GET("/movements", movementsHandler.List)
	api.GET("/movements/:id", movementsHandler.Get)

	receivablesHandler := handlers.NewReceivablesHandler(s.services.Pipeline, s.services.Repo)
	api.GET("/receivables", receivablesHandler.List)
	api.POST("/receivables/sync", receivablesHandler.Sync)

	dashboardHandler := handlers.NewDashboardHandler(s.services.Reporting)
	api.GET("/dashboard", dashboardHandler.Dashboard)
	api.GET("/stats", dashboardHandler.Stats)
}

// Start starts the HTTP server and blocks until it stops.
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

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
