// Application entry point - where everything comes together
// Follows clean architecture: main is just wiring, logic is in packages

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/api/handlers"
	"github.com/finproofs/receivable-zkp/internal/api/router"
	"github.com/finproofs/receivable-zkp/internal/catalog"
	"github.com/finproofs/receivable-zkp/internal/circuit"
	"github.com/finproofs/receivable-zkp/internal/common/cache"
	"github.com/finproofs/receivable-zkp/internal/common/config"
	"github.com/finproofs/receivable-zkp/internal/common/health"
	"github.com/finproofs/receivable-zkp/internal/orchestrator"
	"github.com/finproofs/receivable-zkp/internal/prover"
	"github.com/finproofs/receivable-zkp/internal/scheme"
	"github.com/finproofs/receivable-zkp/internal/service"
	"github.com/finproofs/receivable-zkp/internal/storage/postgres"
)

// Version info (set via ldflags during build)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// ========================================================================
	// Step 1: Parse CLI Flags
	// ========================================================================

	configPath := flag.String("config", "configs/zkp-service.yaml", "Path to config file")
	flag.Parse()

	// ========================================================================
	// Step 2: Load Configuration
	// ========================================================================

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// ========================================================================
	// Step 3: Initialize Logger
	// ========================================================================

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Receivable ZKP Service",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("git_commit", gitCommit),
		zap.String("config", *configPath),
	)

	// ========================================================================
	// Step 4: Build Catalog and Scheme Registry (fail fast on misconfig)
	// ========================================================================

	cat, err := catalog.Default()
	if err != nil {
		logger.Fatal("Field catalog is invalid", zap.Error(err))
	}

	registry := scheme.DefaultRegistry(cat)
	if configErrs := registry.Validate(); len(configErrs) > 0 {
		for _, ce := range configErrs {
			logger.Error("Scheme configuration error",
				zap.String("scheme", ce.Scheme),
				zap.String("key", ce.Key),
				zap.String("reason", ce.Reason),
			)
		}
		logger.Fatal("Scheme registry failed validation", zap.Int("errors", len(configErrs)))
	}

	logger.Info("Scheme registry loaded",
		zap.Int("fields", cat.Len()),
		zap.Strings("schemes", registry.Names()),
	)

	// ========================================================================
	// Step 5: Connect Dependencies
	// ========================================================================

	db, err := postgres.ConnectPostgreSQL(cfg.Database.URL, &postgres.DatabaseConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	cacheLayer, err := cache.NewCacheLayer(cache.CacheConfig{
		Enabled:  cfg.Cache.Enabled,
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		TTL:      cfg.Cache.TTL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache layer", zap.Error(err))
	}
	defer cacheLayer.Close()

	// ========================================================================
	// Step 6: Wire the Proof Pipeline
	// ========================================================================

	store := prover.NewStore(cfg.ZKP.ArtifactsDir)
	orch := orchestrator.New(orchestrator.Config{
		ProverBinary: cfg.ZKP.ProverBinary,
		ArtifactsDir: cfg.ZKP.ArtifactsDir,
		WorkDir:      cfg.ZKP.WorkDir,
		Timeout:      cfg.ZKP.ProofTimeout,
	}, logger)

	jobRepo := postgres.NewJobRepository(db)
	validator := scheme.NewValidator(registry)
	commitmentService := service.NewCommitmentService(validator, logger)
	proofService := service.NewProofService(commitmentService, orch, jobRepo, cacheLayer, logger)

	expectedCircuits := expectedCircuitShapes(registry)
	logger.Info("Expecting compiled circuits",
		zap.Strings("circuits", expectedCircuits),
		zap.String("artifacts_dir", cfg.ZKP.ArtifactsDir),
	)

	// ========================================================================
	// Step 7: Initialize Handlers and Router
	// ========================================================================

	// Block until the database, cache, and compiled circuits are usable so
	// the first request does not eat a cold-start failure.
	checker := health.NewChecker(logger)
	if err := checker.WaitForHealthy(context.Background(), db, cacheLayer, store, expectedCircuits, 30*time.Second); err != nil {
		logger.Fatal("Dependencies failed to become healthy", zap.Error(err))
	}

	commitmentHandler := handlers.NewCommitmentHandler(commitmentService, proofService, cfg.ZKP.MaxFields, logger)
	registryHandler := handlers.NewRegistryHandler(registry, logger)
	healthHandler := handlers.NewHealthHandler(checker, db, cacheLayer, store, expectedCircuits)

	r := router.SetupRouter(commitmentHandler, registryHandler, healthHandler, cfg, logger)

	// ========================================================================
	// Step 8: Create HTTP Server
	// ========================================================================

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", cfg.GetServerAddress()),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully",
		zap.String("address", cfg.GetServerAddress()),
		zap.String("environment", getEnvironment(cfg)),
	)

	// ========================================================================
	// Step 9: Graceful Shutdown
	// ========================================================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Give outstanding requests time to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Shutting down server gracefully...")

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// ============================================================================
// Helper Functions
// ============================================================================

// expectedCircuitShapes lists the circuit names a full submission of each
// scheme would need. Partial submissions use smaller shapes, compiled on
// demand by zkp-prover setup; these are the ones readiness insists on.
func expectedCircuitShapes(registry *scheme.Registry) []string {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, schemeName := range registry.Names() {
		sch, ok := registry.Scheme(schemeName)
		if !ok {
			continue
		}
		numFields := len(sch.Fields)
		numDisclosed := 0
		for _, use := range sch.Fields {
			if use.Visibility == scheme.Public {
				numDisclosed++
			}
		}
		name := circuit.Name(numFields, numDisclosed)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// initLogger creates a configured zap logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	var level zap.AtomicLevel
	switch cfg.Level {
	case "debug":
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zapConfig.Level = level

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	return zapConfig.Build()
}

// getEnvironment returns environment name based on config
func getEnvironment(cfg *config.Config) string {
	if cfg.IsProduction() {
		return "production"
	}
	return "development"
}
