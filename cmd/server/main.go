package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"okd-deploy-api-go/internal/api"
	"okd-deploy-api-go/internal/app"
	"okd-deploy-api-go/internal/applier"
	"okd-deploy-api-go/internal/auth"
	"okd-deploy-api-go/internal/cluster"
	"okd-deploy-api-go/internal/compiler"
	"okd-deploy-api-go/internal/config"
	"okd-deploy-api-go/internal/orchestrator"
	"okd-deploy-api-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting OKD Deploy API",
		zap.String("version", cfg.AppVersion),
		zap.String("cluster_api", cfg.ClusterAPIURL),
		zap.String("log_level", cfg.LogLevel),
	)

	// Cluster credential and clients
	cred, err := cluster.NewCredential(cfg.ClusterAPIURL, cfg.ClusterToken, cfg.ClusterInsecureTLS, &cluster.Options{
		UserAgent: cfg.AppName + "/" + cfg.AppVersion,
	})
	if err != nil {
		logger.Fatal("Failed to create cluster credential", zap.Error(err))
	}

	mapper, err := applier.NewRESTMapper(cred.RESTConfig())
	if err != nil {
		logger.Fatal("Failed to create REST mapper", zap.Error(err))
	}

	// Reference-data cache over the cluster fetcher
	fetcher := cluster.NewFetcher(cred.Clientset())
	cache := cluster.NewCache(fetcher, cfg.CacheTTL, logger.L())

	// Authorization gate, compiler, applier
	gate := auth.NewGate(cfg.ClaimsNamespaceKey, cfg.AdminRole)
	comp := compiler.New(compiler.Options{
		RouteDomains:        cfg.RouteDomains,
		CPURequestValues:    cfg.CPURequestValues,
		MemoryRequestValues: cfg.MemoryRequestValues,
	}, logger.L())
	manifestApplier := applier.New(cred.Dynamic(), mapper, applier.Options{
		FieldManager:       cfg.AppName,
		PerResourceTimeout: cfg.ApplyTimeout,
		Retries:            cfg.ApplyRetries,
	}, logger.L())

	orc := orchestrator.New(gate, cache, comp, manifestApplier, cfg.FallbackStorageClasses, logger.L())

	// HTTP surface
	router := api.NewRouter(orc, cache, logger.L())
	srv := app.NewServer(cfg, router, logger.L())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("OKD Deploy API is ready to accept requests",
		zap.String("address", cfg.GetServerAddress()),
	)

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
