package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved snapshot in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	state map[string]any
	saves int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: make(map[string]any)}
}

func (s *MemoryStore) Load(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state), nil
}

func (s *MemoryStore) Save(ctx context.Context, snapshot map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = copyState(snapshot)
	s.saves++
	return nil
}

// Saves returns how many snapshots have been written
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyState(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
