// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	Store       StoreConfig
	Session     SessionConfig
	Judge       JudgeConfig
	AuditLog    AuditLogConfig
	RateLimit   RateLimitConfig
	Artifact    ArtifactConfig
	Retry       RetryConfig
	Timeout     TimeoutConfig
}

// StoreConfig selects and configures the session state backend.
type StoreConfig struct {
	Backend       string
	DBPath        string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// SessionConfig controls actor lifetime and persisted state retention.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Retention     time.Duration
}

// JudgeConfig controls the evaluation pipeline.
type JudgeConfig struct {
	LLMAddr      string
	Model        string
	ProfilesPath string
	Timeout      time.Duration
}

// AuditLogConfig controls NDJSON action logging.
type AuditLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// RateLimitConfig throttles evaluation requests per user.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// ArtifactConfig points exports at S3-compatible object storage, or at a
// local directory when no bucket is set.
type ArtifactConfig struct {
	Dir      string
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// Enabled reports whether an export bucket is configured.
func (a ArtifactConfig) Enabled() bool {
	return a.Bucket != ""
}

// RetryConfig controls retries of conflicting storage writes.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// TimeoutConfig holds request-scoped timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("AUDIT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
			DBPath:        getEnv("DB_PATH", "./data/logoforge.db"),
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			IdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			Retention:     getEnvDuration("SESSION_RETENTION", 30*24*time.Hour),
		},
		Judge: JudgeConfig{
			LLMAddr:      getEnv("LLM_ADDR", ""),
			Model:        getEnv("LLM_MODEL", "claude-sonnet"),
			ProfilesPath: getEnv("JUDGE_PROFILES", ""),
			Timeout:      getEnvDuration("JUDGE_TIMEOUT", 90*time.Second),
		},
		AuditLog: AuditLogConfig{
			Enabled:   getEnvBool("AUDIT_LOG_ENABLED", true),
			Dir:       getEnv("AUDIT_LOG_DIR", "./data/logs/sessions"),
			QueueSize: queueSize,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 3),
		},
		Artifact: ArtifactConfig{
			Dir:      getEnv("ARTIFACT_DIR", "./data/artifacts"),
			Bucket:   getEnv("ARTIFACT_BUCKET", ""),
			Region:   getEnv("ARTIFACT_REGION", "us-east-1"),
			Endpoint: getEnv("ARTIFACT_ENDPOINT", ""),
			Prefix:   getEnv("ARTIFACT_PREFIX", "logos/"),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
		Timeout: TimeoutConfig{
			HealthCheck: 5 * time.Second,
			Shutdown:    10 * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.AuditLog.Enabled && c.AuditLog.Dir == "" {
		return fmt.Errorf("AUDIT_LOG_DIR cannot be empty")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
