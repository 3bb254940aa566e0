package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/campus/pkg/storage"
)

// RedisStore keeps the shared state in a single Redis hash, one field per
// state key with a JSON encoded value
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis-backed state store
func NewRedisStore(config storage.Config) (*RedisStore, error) {
	// Parse Redis URL or use default options
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, config.KeyPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "campus"
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":state",
	}
}

// Key returns the hash holding the state
func (s *RedisStore) Key() string {
	return s.key
}

// Load reads every field of the state hash
func (s *RedisStore) Load(ctx context.Context) (map[string]any, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	state := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state key %s: %w", k, err)
		}
		state[k] = v
	}
	return state, nil
}

// Save replaces the state hash with snapshot in a single transaction
func (s *RedisStore) Save(ctx context.Context, snapshot map[string]any) error {
	values := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal state key %s: %w", k, err)
		}
		values[k] = string(data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save failed: %w", err)
	}
	return nil
}

// HealthCheck checks Redis connectivity
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
