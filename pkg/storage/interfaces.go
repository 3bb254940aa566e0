package storage

import (
	"context"
	"time"
)

// StateStore persists the manager's shared state. Save receives the full
// snapshot and replaces whatever was stored before. Values round-trip
// through JSON, so numbers come back as float64 and structs as maps.
type StateStore interface {
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, snapshot map[string]any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Backend types
const (
	TypeMemory   = "memory"
	TypeRedis    = "redis"
	TypePostgres = "postgres"
)

// Config for storage backend
type Config struct {
	Type string // "memory", "redis", "postgres"

	// KeyPrefix namespaces the Redis hash and identifies the state row set in
	// PostgreSQL so several shells can share one backend
	KeyPrefix string

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// SaveTimeout bounds a single Save issued by the Persister
	SaveTimeout time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		KeyPrefix:        "campus",
		PostgresMaxConns: 10,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		SaveTimeout:      5 * time.Second,
	}
}
