// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development-safe default; production
// deployments override through SIVA_* variables.
//
// Backing services are optional: an empty Postgres DSN selects the
// in-memory stores, an empty Redis URL selects the in-memory rate limit
// counters, and an empty Kafka broker list disables the Kafka audit sink.
// A bare `go run ./cmd/server` therefore starts a fully working instance.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all runtime configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Policy    PolicyConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string // "text" or "json"
	Level  string // "debug", "info", "warn", "error"
}

// PostgresConfig configures the shared connection pool.
// An empty DSN means Postgres is not configured and memory stores are used.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the shared Redis client.
// An empty URL means Redis is not configured.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event sink.
// An empty broker list means the Kafka sink is disabled.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// AuthConfig configures credential verification.
type AuthConfig struct {
	// AdminJWTSecret signs and verifies admin tokens (HS256). Admin endpoints
	// are disabled when empty.
	AdminJWTSecret string
	AdminJWTIssuer string
	AdminTokenTTL  time.Duration
}

// RateLimitConfig carries per-endpoint-class request budgets. The evaluate
// class is limited per tenant and per IP; the admin classes only per IP,
// since admin callers authenticate with a token rather than a tenant key.
type RateLimitConfig struct {
	Enabled           bool
	Window            time.Duration
	EvaluatePerTenant int
	EvaluatePerIP     int
	AdminPerIP        int
	ReadPerIP         int
}

// AuditConfig configures the async audit pipeline.
type AuditConfig struct {
	QueueSize int
}

// PolicyConfig configures policy bootstrap.
type PolicyConfig struct {
	// SeedPath points at a YAML file of policies loaded at startup.
	// Empty disables seeding.
	SeedPath string
}

// FromEnv builds the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            envString("SIVA_ADDR", ":8080"),
			ReadTimeout:     envDuration("SIVA_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    envDuration("SIVA_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     envDuration("SIVA_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: envDuration("SIVA_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Format: envString("SIVA_LOG_FORMAT", "text"),
			Level:  envString("SIVA_LOG_LEVEL", "info"),
		},
		Postgres: PostgresConfig{
			DSN:             envString("SIVA_POSTGRES_DSN", ""),
			MaxOpenConns:    envInt("SIVA_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("SIVA_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("SIVA_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          envString("SIVA_REDIS_URL", ""),
			PoolSize:     envInt("SIVA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SIVA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("SIVA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SIVA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SIVA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    envStringSlice("SIVA_KAFKA_BROKERS"),
			AuditTopic: envString("SIVA_KAFKA_AUDIT_TOPIC", "siva.audit.events"),
		},
		Auth: AuthConfig{
			AdminJWTSecret: envString("SIVA_ADMIN_JWT_SECRET", ""),
			AdminJWTIssuer: envString("SIVA_ADMIN_JWT_ISSUER", "siva"),
			AdminTokenTTL:  envDuration("SIVA_ADMIN_TOKEN_TTL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBool("SIVA_RATELIMIT_ENABLED", true),
			Window:            envDuration("SIVA_RATELIMIT_WINDOW", time.Minute),
			EvaluatePerTenant: envInt("SIVA_RATELIMIT_EVALUATE_PER_TENANT", 60),
			EvaluatePerIP:     envInt("SIVA_RATELIMIT_EVALUATE_PER_IP", 120),
			AdminPerIP:        envInt("SIVA_RATELIMIT_ADMIN_PER_IP", 30),
			ReadPerIP:         envInt("SIVA_RATELIMIT_READ_PER_IP", 120),
		},
		Audit: AuditConfig{
			QueueSize: envInt("SIVA_AUDIT_QUEUE_SIZE", 1024),
		},
		Policy: PolicyConfig{
			SeedPath: envString("SIVA_POLICY_SEED_PATH", ""),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envStringSlice parses a comma-separated list, dropping empty entries.
func envStringSlice(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
