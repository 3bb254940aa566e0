package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/storage"
)

// setupRedisStoreTest creates a miniredis instance and a store connected to it
func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	config := storage.DefaultConfig()
	config.Type = storage.TypeRedis
	config.RedisURL = "redis://" + mr.Addr()
	config.KeyPrefix = "test"

	store, err := NewRedisStore(config)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	config := storage.Config{RedisURL: "invalid://url"}

	_, err := NewRedisStore(config)
	assert.Error(t, err)
}

func TestNewRedisStore_ConnectionFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(storage.Config{RedisURL: "redis://" + addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	err := store.Save(ctx, map[string]any{
		"theme":  "dark",
		"unread": 3,
		"prefs":  map[string]any{"compact": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "test:state", store.Key())
	assert.Equal(t, `"dark"`, mr.HGet("test:state", "theme"))

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"theme":  "dark",
		"unread": float64(3),
		"prefs":  map[string]any{"compact": true},
	}, state)
}

func TestRedisStore_SaveReplacesSnapshot(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, map[string]any{"theme": "dark", "lang": "en"}))
	require.NoError(t, store.Save(ctx, map[string]any{"theme": "light"}))

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "light"}, state)

	require.NoError(t, store.Save(ctx, map[string]any{}))
	assert.False(t, mr.Exists("test:state"))

	state, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestRedisStore_LoadCorruptValue(t *testing.T) {
	store, mr := setupRedisStoreTest(t)

	mr.HSet("test:state", "theme", "{not json")

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme")
}

func TestRedisStore_HealthCheck(t *testing.T) {
	store, mr := setupRedisStoreTest(t)

	assert.NoError(t, store.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, store.HealthCheck(context.Background()))
}

func TestNewStateStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	memory, err := NewStateStore(storage.DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, memory)

	config := storage.DefaultConfig()
	config.Type = storage.TypeRedis
	config.RedisURL = "redis://" + mr.Addr()
	redisStore, err := NewStateStore(config)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, redisStore)
	redisStore.Close()

	_, err = NewStateStore(storage.Config{Type: "etcd"})
	assert.Error(t, err)
}
