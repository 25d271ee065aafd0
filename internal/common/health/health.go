// Package health provides health check utilities for service dependencies
package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finproofs/receivable-zkp/internal/common/cache"
)

// ArtifactStore reports whether a circuit's compiled artifacts are on disk.
type ArtifactStore interface {
	Exists(name string) bool
}

// Checker performs health checks on system dependencies
type Checker struct {
	logger *zap.Logger
}

// NewChecker creates a new health checker
func NewChecker(logger *zap.Logger) *Checker {
	return &Checker{logger: logger}
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Component string        `json:"component"`
	Healthy   bool          `json:"healthy"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
}

// SystemHealth represents overall system health
type SystemHealth struct {
	Healthy bool          `json:"healthy"`
	Checks  []CheckResult `json:"checks"`
}

// CheckAll performs health checks on all critical dependencies. Missing
// circuit artifacts make the service unready: proof requests would fail
// with a configuration error until setup is rerun.
func (h *Checker) CheckAll(ctx context.Context, db *sql.DB, cacheLayer *cache.CacheLayer, store ArtifactStore, circuits []string) *SystemHealth {
	results := make([]CheckResult, 0, 3)
	allHealthy := true

	// Check database
	dbResult := h.CheckDatabase(ctx, db)
	results = append(results, dbResult)
	if !dbResult.Healthy {
		allHealthy = false
	}

	// Check circuit artifacts
	if store != nil {
		artResult := h.CheckArtifacts(store, circuits)
		results = append(results, artResult)
		if !artResult.Healthy {
			allHealthy = false
		}
	}

	// Check cache layer (if enabled)
	if cacheLayer != nil && cacheLayer.IsEnabled() {
		cacheResult := h.CheckCache(ctx, cacheLayer)
		results = append(results, cacheResult)
		if !cacheResult.Healthy {
			h.logger.Warn("Cache unhealthy, but continuing (non-critical)",
				zap.String("message", cacheResult.Message),
			)
			// Cache failure is not critical - we can operate without it
		}
	}

	return &SystemHealth{
		Healthy: allHealthy,
		Checks:  results,
	}
}

// CheckDatabase verifies PostgreSQL connectivity and basic operations
func (h *Checker) CheckDatabase(ctx context.Context, db *sql.DB) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "database",
		Healthy:   false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(checkCtx); err != nil {
		result.Message = fmt.Sprintf("ping failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	var version string
	err := db.QueryRowContext(checkCtx, "SELECT version()").Scan(&version)
	if err != nil {
		result.Message = fmt.Sprintf("query failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	stats := db.Stats()
	if stats.OpenConnections >= stats.MaxOpenConnections {
		h.logger.Warn("Database connection pool exhausted",
			zap.Int("open", stats.OpenConnections),
			zap.Int("max", stats.MaxOpenConnections),
		)
	}

	result.Healthy = true
	result.Message = "ok"
	result.Duration = time.Since(start)
	return result
}

// CheckArtifacts verifies that every expected circuit shape has compiled
// artifacts on disk
func (h *Checker) CheckArtifacts(store ArtifactStore, circuits []string) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "circuit_artifacts",
		Healthy:   false,
	}

	missing := make([]string, 0)
	for _, name := range circuits {
		if !store.Exists(name) {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		result.Message = fmt.Sprintf("missing artifacts for: %v", missing)
		result.Duration = time.Since(start)
		return result
	}

	result.Healthy = true
	result.Message = "ok"
	result.Duration = time.Since(start)
	return result
}

// CheckCache verifies Redis cache layer connectivity
func (h *Checker) CheckCache(ctx context.Context, cacheLayer *cache.CacheLayer) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "cache",
		Healthy:   false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := cacheLayer.HealthCheck(checkCtx); err != nil {
		result.Message = fmt.Sprintf("health check failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Healthy = true
	result.Message = "ok"
	result.Duration = time.Since(start)
	return result
}

// WaitForHealthy blocks until all critical dependencies are healthy or timeout
func (h *Checker) WaitForHealthy(ctx context.Context, db *sql.DB, cacheLayer *cache.CacheLayer, store ArtifactStore, circuits []string, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		h.logger.Info("Checking system health", zap.Int("attempt", attempt))

		health := h.CheckAll(ctx, db, cacheLayer, store, circuits)

		if health.Healthy {
			h.logger.Info("All critical dependencies healthy")
			return nil
		}

		for _, check := range health.Checks {
			if !check.Healthy {
				h.logger.Warn("Dependency unhealthy",
					zap.String("component", check.Component),
					zap.String("message", check.Message),
				)
			}
		}

		// Wait before retry (exponential backoff, max 5s)
		waitTime := time.Duration(attempt) * time.Second
		if waitTime > 5*time.Second {
			waitTime = 5 * time.Second
		}

		h.logger.Info("Retrying health check", zap.Duration("wait", waitTime))
		time.Sleep(waitTime)
	}

	return fmt.Errorf("health check timeout after %v", maxWait)
}
