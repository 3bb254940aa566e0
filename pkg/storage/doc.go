// Package storage persists the plugin manager's shared state.
//
// # Overview
//
// The shared state blackboard lives in memory inside the manager. A
// Persister listens for state:changed events and writes the latest snapshot
// to a StateStore; on start it restores the stored snapshot into the
// manager.
//
// # Backends
//
//   - MemoryStore: process local, used by default and in tests
//   - postgres.RedisStore: one Redis hash, one JSON field per key
//   - postgres.PostgresStore: campus_state table, one row per key
//
// postgres.NewStateStore picks the backend from Config.Type.
//
// # Usage Example
//
//	store, err := postgres.NewStateStore(cfg.Storage)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	p := storage.NewPersister(store, log, cfg.Storage.SaveTimeout)
//	if err := p.Restore(ctx, manager); err != nil {
//		log.Warn(err)
//	}
//	p.Attach(manager)
//	go p.Run(ctx)
package storage
