package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the plugin manager
const (
	PluginRegistered  = "plugin:registered"
	PluginInitialized = "plugin:initialized"
	PluginError       = "plugin:error"
	PluginDestroyed   = "plugin:destroyed"
	StateChanged      = "state:changed"
)

// Event is a single notification delivered to listeners
type Event struct {
	ID       string
	Name     string
	PluginID string
	Plugin   any            // descriptor for plugin:* events
	Err      error          // set for plugin:error
	State    map[string]any // full snapshot for state:changed
	Duration time.Duration  // lifecycle hook run time, when one ran
	Time     time.Time
}

// Listener receives events
type Listener func(Event)

// Subscription identifies a registered listener
type Subscription struct {
	ID   string
	Name string
}

type subscriber struct {
	id       string
	listener Listener
	once     bool
}

// Emitter is a synchronous publish/subscribe primitive. Listeners run in
// subscription order on the goroutine that calls Emit.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]subscriber
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]subscriber),
	}
}

// On registers a listener for the named event
func (e *Emitter) On(name string, listener Listener) Subscription {
	return e.add(name, listener, false)
}

// Once registers a listener that is removed after its first delivery
func (e *Emitter) Once(name string, listener Listener) Subscription {
	return e.add(name, listener, true)
}

func (e *Emitter) add(name string, listener Listener, once bool) Subscription {
	id := uuid.NewString()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[name] = append(e.listeners[name], subscriber{
		id:       id,
		listener: listener,
		once:     once,
	})

	return Subscription{ID: id, Name: name}
}

// Off removes a listener. Unknown subscriptions are ignored.
func (e *Emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeLocked(sub.Name, sub.ID)
}

func (e *Emitter) removeLocked(name, id string) {
	subs := e.listeners[name]
	for i, s := range subs {
		if s.id == id {
			e.listeners[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.listeners[name]) == 0 {
		delete(e.listeners, name)
	}
}

// Emit delivers the event to every listener subscribed to ev.Name.
// A panicking listener is not recovered and aborts delivery to the rest.
func (e *Emitter) Emit(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	// Snapshot so listeners may subscribe or unsubscribe while being called
	e.mu.Lock()
	subs := append([]subscriber(nil), e.listeners[ev.Name]...)
	for _, s := range subs {
		if s.once {
			e.removeLocked(ev.Name, s.id)
		}
	}
	e.mu.Unlock()

	for _, s := range subs {
		s.listener(ev)
	}
}

// ListenerCount returns the number of listeners for the named event
func (e *Emitter) ListenerCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.listeners[name])
}

// RemoveAll drops every listener
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = make(map[string][]subscriber)
}
