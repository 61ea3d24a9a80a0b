/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for computed forecasts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultForecastTTL = 10 * time.Minute
	DefaultPeakTTL     = 15 * time.Minute
)

// Key prefixes for Redis cache
const (
	keyRoot     = "stallcast:cache:"
	KeyForecast = keyRoot + "forecast:" // + stall_id:slot:date
	KeyPeak     = keyRoot + "peak:"     // + stall_id:window:today
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ForecastTTL time.Duration
	PeakTTL     time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ForecastTTL:    DefaultForecastTTL,
		PeakTTL:        DefaultPeakTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. It satisfies
// forecast.ResultCache.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

var _ forecast.ResultCache = (*Cache)(nil)

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.ForecastTTL <= 0 {
		cfg.ForecastTTL = DefaultForecastTTL
	}
	if cfg.PeakTTL <= 0 {
		cfg.PeakTTL = DefaultPeakTTL
	}
	logger = logger.With().Str("component", "cache").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		telemetry.CacheStatus.Set(0)
		return &Cache{
			logger:   logger,
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	telemetry.CacheStatus.Set(1)

	return &Cache{
		client: client,
		logger: logger,
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		telemetry.CacheStatus.Set(0)
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

func dateKey(t time.Time) string {
	return forecast.DateOf(t).Format("2006-01-02")
}

// ForecastKey is the Redis key of one stall/slot/date forecast.
func ForecastKey(stallID, slot string, date time.Time) string {
	return KeyForecast + stallID + ":" + slot + ":" + dateKey(date)
}

// PeakKey is the Redis key of one peak analysis.
func PeakKey(stallID string, windowDays int, today time.Time) string {
	return KeyPeak + stallID + ":" + strconv.Itoa(windowDays) + ":" + dateKey(today)
}

// GetForecast retrieves a cached forecast.
func (c *Cache) GetForecast(ctx context.Context, stallID, slot string, date time.Time) (forecast.ForecastResult, bool) {
	var r forecast.ForecastResult
	found, err := c.get(ctx, ForecastKey(stallID, slot, date), &r)
	if err != nil || !found {
		return forecast.ForecastResult{}, false
	}
	c.logger.Debug().Str("stall_id", stallID).Str("slot", slot).Msg("forecast cache hit")
	return r, true
}

// SetForecast caches a forecast.
func (c *Cache) SetForecast(ctx context.Context, stallID, slot string, date time.Time, r forecast.ForecastResult) error {
	return c.set(ctx, ForecastKey(stallID, slot, date), r, c.config.ForecastTTL)
}

// GetPeakAnalysis retrieves a cached peak analysis.
func (c *Cache) GetPeakAnalysis(ctx context.Context, stallID string, windowDays int, today time.Time) (forecast.PeakAnalysis, bool) {
	var a forecast.PeakAnalysis
	found, err := c.get(ctx, PeakKey(stallID, windowDays, today), &a)
	if err != nil || !found {
		return forecast.PeakAnalysis{}, false
	}
	c.logger.Debug().Str("stall_id", stallID).Int("window_days", windowDays).Msg("peak analysis cache hit")
	return a, true
}

// SetPeakAnalysis caches a peak analysis.
func (c *Cache) SetPeakAnalysis(ctx context.Context, stallID string, windowDays int, today time.Time, a forecast.PeakAnalysis) error {
	return c.set(ctx, PeakKey(stallID, windowDays, today), a, c.config.PeakTTL)
}

// InvalidateStall removes every cached result of a stall. Order placement
// and status changes call it so the next read recomputes.
func (c *Cache) InvalidateStall(ctx context.Context, stallID string) error {
	c.logger.Debug().Str("stall_id", stallID).Msg("invalidating stall caches")

	if err := c.deletePattern(ctx, KeyForecast+stallID+":*"); err != nil {
		return err
	}
	return c.deletePattern(ctx, KeyPeak+stallID+":*")
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, keyRoot+"*")
}
