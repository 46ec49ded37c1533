// Package config builds process configuration from environment variables so
// main stays lean. Empty DATABASE_URL, REDIS_URL, or KAFKA_BROKERS select the
// in-memory / no-op fallbacks, which keeps local runs dependency-free.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full service configuration.
type Server struct {
	Addr        string
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Idempotency IdempotencyConfig
	Audit       AuditConfig
}

// RedisConfig configures the cache collaborator.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbound event channel.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// IdempotencyConfig controls the request ledger policy knobs.
type IdempotencyConfig struct {
	// RetryFailed allows one retry of a FAILED ledger entry (FAILED flips back
	// to PROCESSING atomically, single winner). When false, FAILED entries
	// permanently block their key.
	RetryFailed bool
	// ProcessingLease bounds how long an entry may sit in PROCESSING before
	// the reaper marks it failed, recovering keys stranded by a crash.
	ProcessingLease time.Duration
	// ReapInterval is how often the reaper scans for expired leases.
	ReapInterval time.Duration
}

// AuditConfig sizes the outbound event queue and its retry policy.
type AuditConfig struct {
	QueueSize      int
	BatchSize      int
	MaxAttempts    int
	RetryBackoff   time.Duration
	FlushInterval  time.Duration
	DeadLetterSize int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:        envStr("TRAFFICASE_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envStr("KAFKA_AUDIT_TOPIC", "trafficase.audit"),
		},
		Idempotency: IdempotencyConfig{
			RetryFailed:     envStr("IDEMPOTENCY_RETRY_FAILED", "true") == "true",
			ProcessingLease: envDur("IDEMPOTENCY_PROCESSING_LEASE", 5*time.Minute),
			ReapInterval:    envDur("IDEMPOTENCY_REAP_INTERVAL", time.Minute),
		},
		Audit: AuditConfig{
			QueueSize:      envInt("AUDIT_QUEUE_SIZE", 10000),
			BatchSize:      envInt("AUDIT_BATCH_SIZE", 100),
			MaxAttempts:    envInt("AUDIT_MAX_ATTEMPTS", 5),
			RetryBackoff:   envDur("AUDIT_RETRY_BACKOFF", 500*time.Millisecond),
			FlushInterval:  envDur("AUDIT_FLUSH_INTERVAL", time.Second),
			DeadLetterSize: envInt("AUDIT_DEAD_LETTER_SIZE", 1000),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
