/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/stallcast/internal/forecast"
	"github.com/friendsincode/stallcast/internal/models"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects how events cross instance boundaries.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	LogFile     string

	// Redis (cache, leader election, redis event bus)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// Multi-instance configuration
	LeaderElectionEnabled bool
	InstanceID            string
	EventBus              EventBusBackend
	NATSURL               string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Public API rate limit per client IP
	RateLimitRPS   float64
	RateLimitBurst int

	// Snapshot job and report export
	SnapshotInterval time.Duration
	ReportDir        string

	// Release checks; empty repo disables them
	ReleaseRepo          string
	ReleaseAPIURL        string
	ReleaseCheckInterval time.Duration

	// S3 report export
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Forecast engine
	SlotsFile  string
	TuningFile string
	Forecast   forecast.Config
	Slots      *models.SlotCatalog
}

// Load reads environment variables, applies defaults, and validates the result.
// Forecast tunables come from defaults, then the tuning file, then env.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"STALLCAST_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"STALLCAST_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"STALLCAST_HTTP_PORT", "PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"STALLCAST_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"STALLCAST_DB_DSN", "DATABASE_URL"}, "stallcast.db"),
		LogFile:     getEnvAny([]string{"STALLCAST_LOG_FILE"}, ""),

		RedisAddr:     getEnvAny([]string{"STALLCAST_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"STALLCAST_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"STALLCAST_REDIS_DB"}, 0),
		CacheEnabled:  getEnvBoolAny([]string{"STALLCAST_CACHE_ENABLED"}, false),

		LeaderElectionEnabled: getEnvBoolAny([]string{"STALLCAST_LEADER_ELECTION_ENABLED"}, false),
		InstanceID:            getEnvAny([]string{"STALLCAST_INSTANCE_ID"}, ""),
		EventBus:              EventBusBackend(strings.ToLower(getEnvAny([]string{"STALLCAST_EVENTBUS"}, string(EventBusMemory)))),
		NATSURL:               getEnvAny([]string{"STALLCAST_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),

		TracingEnabled:    getEnvBoolAny([]string{"STALLCAST_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"STALLCAST_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"STALLCAST_TRACING_SAMPLE_RATE"}, 1.0),

		RateLimitRPS:   getEnvFloatAny([]string{"STALLCAST_RATE_LIMIT_RPS"}, 10),
		RateLimitBurst: getEnvIntAny([]string{"STALLCAST_RATE_LIMIT_BURST"}, 20),

		SnapshotInterval: time.Duration(getEnvIntAny([]string{"STALLCAST_SNAPSHOT_INTERVAL_MINUTES"}, 60)) * time.Minute,
		ReportDir:        getEnvAny([]string{"STALLCAST_REPORT_DIR"}, ""),

		ReleaseRepo:          getEnvAny([]string{"STALLCAST_RELEASE_REPO"}, ""),
		ReleaseAPIURL:        getEnvAny([]string{"STALLCAST_RELEASE_API_URL"}, "https://api.github.com"),
		ReleaseCheckInterval: time.Duration(getEnvIntAny([]string{"STALLCAST_RELEASE_CHECK_HOURS"}, 6)) * time.Hour,

		S3AccessKeyID:     getEnvAny([]string{"STALLCAST_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"STALLCAST_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"STALLCAST_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"STALLCAST_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"STALLCAST_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"STALLCAST_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		SlotsFile:  getEnvAny([]string{"STALLCAST_SLOTS_FILE"}, ""),
		TuningFile: getEnvAny([]string{"STALLCAST_TUNING_FILE"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("STALLCAST_DB_DSN must be provided")
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.SnapshotInterval <= 0 {
		return nil, fmt.Errorf("STALLCAST_SNAPSHOT_INTERVAL_MINUTES must be positive")
	}

	tuning := forecast.DefaultConfig()
	if cfg.TuningFile != "" {
		var err error
		if tuning, err = LoadTuningFile(cfg.TuningFile, tuning); err != nil {
			return nil, err
		}
	}
	tuning, err := applyForecastEnv(tuning)
	if err != nil {
		return nil, err
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	cfg.Forecast = tuning

	cfg.Slots = models.DefaultSlotCatalog()
	if cfg.SlotsFile != "" {
		catalog, err := LoadSlotCatalog(cfg.SlotsFile)
		if err != nil {
			return nil, err
		}
		cfg.Slots = catalog
	}

	return cfg, nil
}

// IsProduction reports whether the process runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func applyForecastEnv(cfg forecast.Config) (forecast.Config, error) {
	cfg.MaxCapacity = getEnvIntAny([]string{"STALLCAST_MAX_CAPACITY"}, cfg.MaxCapacity)
	cfg.PeakThreshold = getEnvFloatAny([]string{"STALLCAST_PEAK_THRESHOLD"}, cfg.PeakThreshold)
	cfg.PeakWindowDays = getEnvIntAny([]string{"STALLCAST_PEAK_WINDOW_DAYS"}, cfg.PeakWindowDays)
	cfg.MediumRatio = getEnvFloatAny([]string{"STALLCAST_MEDIUM_RATIO"}, cfg.MediumRatio)
	cfg.HighRatio = getEnvFloatAny([]string{"STALLCAST_HIGH_RATIO"}, cfg.HighRatio)

	if raw := getEnvAny([]string{"STALLCAST_FORECAST_WEIGHTS"}, ""); raw != "" {
		weights, err := parseWeights(raw)
		if err != nil {
			return cfg, fmt.Errorf("STALLCAST_FORECAST_WEIGHTS: %w", err)
		}
		cfg.Weights = weights
	}
	return cfg, nil
}

func parseWeights(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	weights := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		w, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		weights = append(weights, w)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no weights in %q", raw)
	}
	return weights, nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
