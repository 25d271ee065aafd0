// Package cache provides a Redis-based cache layer for proof job results.
// Multiple service instances can share cached job lookups, which keeps
// repeated GET polling off the database. Only public job data is cached;
// salts and private field values never enter this layer.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheLayer provides distributed caching for proof job results
type CacheLayer struct {
	redis   *redis.Client
	logger  *zap.Logger
	enabled bool
	ttl     time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	TTL          time.Duration // Default TTL for cache entries
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Enabled      bool
}

// CacheEntry represents a cached value with metadata
type CacheEntry struct {
	Value     interface{} `json:"value"`
	CachedAt  int64       `json:"cached_at"`
	ExpiresAt int64       `json:"expires_at"`
}

// NewCacheLayer creates a new cache layer instance. A failed Redis
// connection degrades to a disabled layer instead of failing startup.
func NewCacheLayer(config CacheConfig, logger *zap.Logger) (*CacheLayer, error) {
	if !config.Enabled {
		logger.Info("Cache layer disabled")
		return &CacheLayer{
			enabled: false,
			logger:  logger,
		}, nil
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	readTimeout := config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 3 * time.Second
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 3 * time.Second
	}
	minIdleConns := config.MinIdleConns
	if minIdleConns == 0 {
		minIdleConns = 5
	}
	ttl := config.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: minIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Cache Redis connection failed, caching disabled",
			zap.String("addr", addr),
			zap.Error(err),
		)
		return &CacheLayer{
			enabled: false,
			logger:  logger,
		}, nil
	}

	logger.Info("Cache layer connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", config.DB),
		zap.Duration("default_ttl", ttl),
	)

	return &CacheLayer{
		redis:   client,
		logger:  logger,
		enabled: true,
		ttl:     ttl,
	}, nil
}

// NewDisabledCacheLayer creates a cache layer that is explicitly disabled
func NewDisabledCacheLayer(logger *zap.Logger) *CacheLayer {
	return &CacheLayer{
		enabled: false,
		logger:  logger,
	}
}

// ============================================================================
// Proof Job Result Caching
// ============================================================================

// GetJobResult retrieves a cached proof job result by job ID
func (c *CacheLayer) GetJobResult(ctx context.Context, jobID string) (interface{}, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	key := c.jobResultKey(jobID)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss", zap.String("job_id", jobID))
		return nil, false, nil
	}
	if err != nil {
		c.logger.Warn("Cache read error",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return nil, false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Error("Failed to unmarshal cache entry",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return nil, false, err
	}

	c.logger.Debug("Cache hit",
		zap.String("job_id", jobID),
		zap.Int64("cached_at", entry.CachedAt),
	)

	return entry.Value, true, nil
}

// SetJobResult stores a proof job result in cache
func (c *CacheLayer) SetJobResult(ctx context.Context, jobID string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	key := c.jobResultKey(jobID)

	if ttl == 0 {
		ttl = c.ttl
	}

	now := time.Now().Unix()
	entry := CacheEntry{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now + int64(ttl.Seconds()),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache job result",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Job result cached",
		zap.String("job_id", jobID),
		zap.Duration("ttl", ttl),
	)

	return nil
}

// InvalidateJobResult removes a job result from cache. Called whenever a
// job transitions state so pollers never read a stale status.
func (c *CacheLayer) InvalidateJobResult(ctx context.Context, jobID string) error {
	if !c.enabled {
		return nil
	}

	key := c.jobResultKey(jobID)

	if err := c.redis.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cache",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("Job result invalidated", zap.String("job_id", jobID))
	return nil
}

// ============================================================================
// Request-Based Caching (for idempotent lookups)
// ============================================================================

// GenerateRequestKey creates a deterministic cache key from request data
// Uses SHA-256 hash of normalized JSON to ensure same requests get same key
func (c *CacheLayer) GenerateRequestKey(prefix string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request data: %w", err)
	}

	hash := sha256.Sum256(jsonData)
	hashStr := hex.EncodeToString(hash[:])

	return fmt.Sprintf("zkp:cache:%s:%s", prefix, hashStr), nil
}

// GetByRequestHash retrieves cached value by request hash
func (c *CacheLayer) GetByRequestHash(ctx context.Context, prefix string, requestData interface{}) (interface{}, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	key, err := c.GenerateRequestKey(prefix, requestData)
	if err != nil {
		return nil, false, err
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss (request hash)", zap.String("key", key))
		return nil, false, nil
	}
	if err != nil {
		c.logger.Warn("Cache read error", zap.Error(err))
		return nil, false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, err
	}

	return entry.Value, true, nil
}

// SetByRequestHash stores value by request hash
func (c *CacheLayer) SetByRequestHash(ctx context.Context, prefix string, requestData interface{}, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	key, err := c.GenerateRequestKey(prefix, requestData)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = c.ttl
	}

	now := time.Now().Unix()
	entry := CacheEntry{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now + int64(ttl.Seconds()),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache by request hash", zap.Error(err))
		return err
	}

	return nil
}

// ============================================================================
// Utility Methods
// ============================================================================

// jobResultKey generates a Redis key for proof job results
func (c *CacheLayer) jobResultKey(jobID string) string {
	return fmt.Sprintf("zkp:job:result:%s", jobID)
}

// IsEnabled returns whether caching is operational
func (c *CacheLayer) IsEnabled() bool {
	return c.enabled
}

// HealthCheck verifies Redis connection is alive
func (c *CacheLayer) HealthCheck(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("cache disabled")
	}

	return c.redis.Ping(ctx).Err()
}

// Close gracefully shuts down the cache layer
func (c *CacheLayer) Close() error {
	if !c.enabled || c.redis == nil {
		return nil
	}

	c.logger.Info("Closing cache layer")
	return c.redis.Close()
}
