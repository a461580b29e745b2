package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api/handlers"
	"okd-deploy-api-go/internal/api/middleware"
	"okd-deploy-api-go/internal/orchestrator"
)

// NewRouter creates a new Chi router with all routes and middleware configured
func NewRouter(
	service handlers.Service,
	cache orchestrator.ClusterData,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Apply middleware stack
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger, "/api/v1/health", "/api/v1/ready"))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.Claims(logger))

	// Initialize handlers
	checkAdminHandler := handlers.NewCheckAdminHandler(service, logger)
	clusterDataHandler := handlers.NewClusterDataHandler(service, logger)
	generateHandler := handlers.NewGenerateHandler(service, logger)
	deployHandler := handlers.NewDeployHandler(service, logger)
	healthHandler := handlers.NewHealthHandler(cache, logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Authorization inspection
		r.Get("/check-admin", checkAdminHandler.Handle)

		// Cluster reference data
		r.Get("/cluster-data", clusterDataHandler.Handle)

		// Compilation endpoints
		r.Post("/generate-yaml", generateHandler.Handle)
		r.Post("/deploy-to-okd", deployHandler.Handle)

		// Health and readiness endpoints
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/ready", healthHandler.HandleReady)

		// Metrics endpoint
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	})

	return r
}
