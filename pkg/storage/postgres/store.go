package postgres

import (
	"fmt"

	"github.com/platinummonkey/campus/pkg/storage"
)

// NewStateStore opens the backend selected by config.Type
func NewStateStore(config storage.Config) (storage.StateStore, error) {
	switch config.Type {
	case "", storage.TypeMemory:
		return storage.NewMemoryStore(), nil
	case storage.TypeRedis:
		return NewRedisStore(config)
	case storage.TypePostgres:
		return NewPostgresStore(config)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
