package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/campus/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS campus_state (
	namespace  TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (namespace, key)
)`

// PostgresStore keeps the shared state in the campus_state table, one row
// per key, scoped by namespace
type PostgresStore struct {
	db        *sql.DB
	namespace string
}

// NewPostgresStore opens a connection pool and makes sure the table exists
func NewPostgresStore(config storage.Config) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Configure connection pool
	if config.PostgresMaxConns > 0 {
		db.SetMaxOpenConns(config.PostgresMaxConns)
	}
	if config.PostgresMinConns > 0 {
		db.SetMaxIdleConns(config.PostgresMinConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := config.PostgresTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := NewPostgresStoreFromDB(db, config.KeyPrefix)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an existing pool without touching the schema
func NewPostgresStoreFromDB(db *sql.DB, namespace string) *PostgresStore {
	if namespace == "" {
		namespace = "campus"
	}
	return &PostgresStore{db: db, namespace: namespace}
}

// EnsureSchema creates the state table if needed
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create state table: %w", err)
	}
	return nil
}

// Load reads every key of the namespace
func (s *PostgresStore) Load(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM campus_state WHERE namespace = $1`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]any)
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state key %s: %w", key, err)
		}
		state[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state rows: %w", err)
	}
	return state, nil
}

// Save replaces the namespace's rows with snapshot in one transaction
func (s *PostgresStore) Save(ctx context.Context, snapshot map[string]any) error {
	keys := make([]string, 0, len(snapshot))
	values := make(map[string][]byte, len(snapshot))
	for k, v := range snapshot {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal state key %s: %w", k, err)
		}
		keys = append(keys, k)
		values[k] = data
	}
	// stable statement order
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM campus_state WHERE namespace = $1 AND NOT (key = ANY($2))`,
		s.namespace, pq.Array(keys)); err != nil {
		return fmt.Errorf("failed to delete stale state: %w", err)
	}

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO campus_state (namespace, key, value, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			s.namespace, k, string(values[k])); err != nil {
			return fmt.Errorf("failed to upsert state key %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// HealthCheck pings the database
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
