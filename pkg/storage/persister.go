package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/async"
	"github.com/platinummonkey/campus/pkg/events"
)

// StateSource is the part of the plugin manager the persister needs
type StateSource interface {
	Events() *events.Emitter
	RestoreState(values map[string]any)
}

// Persister mirrors state:changed snapshots into a StateStore. Snapshots are
// coalesced: only the latest one is written when the store is slower than
// the rate of changes.
type Persister struct {
	store       StateStore
	log         logrus.FieldLogger
	saveTimeout time.Duration

	mu      sync.Mutex
	pending map[string]any
	dirty   bool
	notify  chan struct{}
	emitter *events.Emitter
	sub     events.Subscription
}

// NewPersister creates a persister writing to store
func NewPersister(store StateStore, log logrus.FieldLogger, saveTimeout time.Duration) *Persister {
	if log == nil {
		log = logrus.New()
	}
	return &Persister{
		store:       store,
		log:         log.WithField("component", "state-persister"),
		saveTimeout: saveTimeout,
		notify:      make(chan struct{}, 1),
	}
}

// Restore loads the stored snapshot into src
func (p *Persister) Restore(ctx context.Context, src StateSource) error {
	state, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	src.RestoreState(state)
	p.log.WithField("keys", len(state)).Info("Restored shared state")
	return nil
}

// Attach starts listening for state changes on src
func (p *Persister) Attach(src StateSource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.emitter != nil {
		return
	}
	p.emitter = src.Events()
	p.sub = p.emitter.On(events.StateChanged, p.onStateChanged)
}

// Detach stops listening for state changes
func (p *Persister) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.emitter == nil {
		return
	}
	p.emitter.Off(p.sub)
	p.emitter = nil
}

func (p *Persister) onStateChanged(ev events.Event) {
	p.mu.Lock()
	p.pending = ev.State
	p.dirty = true
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run writes pending snapshots until ctx is cancelled, then flushes once more
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-p.notify:
			if err := p.Flush(ctx); err != nil {
				p.log.WithError(err).Warn("Failed to persist shared state")
			}
		case <-ctx.Done():
			timeout := p.saveTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := p.Flush(flushCtx); err != nil {
				p.log.WithError(err).Error("Failed to persist shared state on shutdown")
				return err
			}
			return nil
		}
	}
}

// Flush writes the latest snapshot if one is pending
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	snapshot := p.pending
	p.dirty = false
	p.mu.Unlock()

	err := async.SafeCall(ctx, p.saveTimeout, "state persistence", func(ctx context.Context) error {
		return p.store.Save(ctx, snapshot)
	})
	if err != nil {
		p.mu.Lock()
		if !p.dirty {
			// keep the failed snapshot for the next attempt
			p.pending = snapshot
			p.dirty = true
		}
		p.mu.Unlock()
		return err
	}

	p.log.WithField("keys", len(snapshot)).Debug("Persisted shared state")
	return nil
}
