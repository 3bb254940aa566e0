package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/async"
	"github.com/platinummonkey/campus/pkg/events"
)

// Manager owns the plugin registry, the dependency index, the lifecycle and
// the shared state blackboard. The zero value is not usable; call NewManager.
//
// Lifecycle callbacks and hooks run without the manager lock held, so they
// may call back into the manager. Register calls made while a lifecycle
// operation is running are accepted, but the running operation works on a
// snapshot taken when it started; the new plugin is picked up by the next
// Initialize or Install. Nested lifecycle operations fail with
// ErrLifecycleBusy.
type Manager struct {
	mode        Mode
	log         logrus.FieldLogger
	emitter     *events.Emitter
	hookTimeout time.Duration

	mu             sync.RWMutex
	order          []string // registration order
	plugins        map[string]*Descriptor
	dependencies   map[string][]string
	initialized    []string // initialization order
	initializedSet map[string]bool
	failed         map[string]error // optional plugins whose init failed
	state          map[string]any
	running        bool
}

// Option configures a Manager
type Option func(*Manager)

// WithMode selects the failure policy (default ModeStrict)
func WithMode(mode Mode) Option {
	return func(m *Manager) { m.mode = mode }
}

// WithLogger sets the logger used for lifecycle diagnostics
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithEmitter shares an existing emitter instead of creating one
func WithEmitter(e *events.Emitter) Option {
	return func(m *Manager) {
		if e != nil {
			m.emitter = e
		}
	}
}

// WithHookTimeout bounds the context of every lifecycle callback and hook.
// Zero, the default, means no deadline.
func WithHookTimeout(d time.Duration) Option {
	return func(m *Manager) { m.hookTimeout = d }
}

// NewManager creates an empty manager
func NewManager(opts ...Option) *Manager {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	m := &Manager{
		mode:           ModeStrict,
		log:            discard,
		plugins:        make(map[string]*Descriptor),
		dependencies:   make(map[string][]string),
		initializedSet: make(map[string]bool),
		failed:         make(map[string]error),
		state:          make(map[string]any),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.emitter == nil {
		m.emitter = events.NewEmitter()
	}
	return m
}

// Events returns the emitter lifecycle and state events are published on
func (m *Manager) Events() *events.Emitter {
	return m.emitter
}

// Mode returns the configured failure policy
func (m *Manager) Mode() Mode {
	return m.mode
}

// Register adds descriptors in order. It stops at the first descriptor that
// fails; descriptors before it stay registered.
func (m *Manager) Register(descs ...*Descriptor) error {
	for _, d := range descs {
		if err := m.register(d); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) register(d *Descriptor) error {
	if errs := ValidateDescriptor(d); len(errs) > 0 {
		return &errs[0]
	}

	m.mu.Lock()
	if _, exists := m.plugins[d.ID]; exists {
		m.mu.Unlock()
		return &DuplicateIDError{ID: d.ID}
	}

	if m.mode == ModeStrict {
		for _, dep := range d.Dependencies {
			if _, ok := m.plugins[dep]; !ok {
				known := sortedKeys(m.plugins)
				m.mu.Unlock()
				return &MissingDependencyError{PluginID: d.ID, Dependency: dep, Known: known}
			}
		}
	}

	m.plugins[d.ID] = d
	m.dependencies[d.ID] = append([]string(nil), d.Dependencies...)
	m.order = append(m.order, d.ID)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"plugin":       d.ID,
		"version":      d.Version,
		"dependencies": d.Dependencies,
	}).Info("Plugin registered")

	m.emitter.Emit(events.Event{Name: events.PluginRegistered, PluginID: d.ID, Plugin: d})
	return nil
}

// Initialize initializes every registered plugin in dependency order.
// Plugins that are already initialized are skipped.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.RLock()
	order, err := ResolveOrder(m.order, m.dependencies)
	m.mu.RUnlock()
	if err != nil {
		m.log.WithError(err).Error("Failed to resolve plugin order")
		return err
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.initialize(ctx, id, nil); err != nil {
			return err
		}
	}

	m.log.WithField("count", len(order)).Info("Plugins initialized")
	return nil
}

// InitializePlugin initializes one plugin after recursively initializing its
// dependencies. It is a no-op for an already initialized plugin.
func (m *Manager) InitializePlugin(ctx context.Context, id string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if _, ok := m.Plugin(id); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.initialize(ctx, id, nil)
}

// Install is the on-demand entry point for plugins that are added one at a
// time. It initializes id and any dependency that is not yet initialized,
// following the manager's Mode.
func (m *Manager) Install(ctx context.Context, id string) error {
	return m.InitializePlugin(ctx, id)
}

// InstallMany installs ids after ordering them so that dependencies inside
// the set come first
func (m *Manager) InstallMany(ctx context.Context, ids []string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.RLock()
	for _, id := range ids {
		if _, ok := m.plugins[id]; !ok {
			m.mu.RUnlock()
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	order, err := ResolveSubset(ids, m.dependencies)
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.initialize(ctx, id, nil); err != nil {
			return err
		}
	}
	return nil
}

// initialize runs the single-plugin step. path holds the plugins whose
// dependency walk is in progress and is used to detect cycles.
func (m *Manager) initialize(ctx context.Context, id string, path []string) error {
	m.mu.RLock()
	d := m.plugins[id]
	done := m.initializedSet[id]
	failErr := m.failed[id]
	deps := m.dependencies[id]
	m.mu.RUnlock()

	if done {
		return nil
	}
	if failErr != nil {
		// optional plugin that already failed; callers check m.failed
		return nil
	}
	for _, p := range path {
		if p == id {
			return &CircularDependencyError{Cycle: cyclePath(path, id)}
		}
	}
	path = append(path, id)

	log := m.log.WithField("plugin", id)

	for _, dep := range deps {
		if _, ok := m.Plugin(dep); !ok {
			return &MissingDependencyError{PluginID: id, Dependency: dep, Known: m.knownIDs()}
		}
		if err := m.initialize(ctx, dep, path); err != nil {
			return err
		}
		if m.failure(dep) != nil {
			return m.fail(d, &InitError{PluginID: id, Err: fmt.Errorf("%w: %s", ErrDependencyFailed, dep)})
		}
	}

	if m.mode == ModeLenient {
		// Marked before OnInit runs; failures are only reported
		m.markInitialized(id)
		start := time.Now()
		if err := m.call(ctx, id+".onInit", d.OnInit); err != nil {
			initErr := &InitError{PluginID: id, Err: err}
			log.WithError(err).Warn("Plugin init failed, keeping it installed")
			m.emitter.Emit(events.Event{Name: events.PluginError, PluginID: id, Plugin: d, Err: initErr, Duration: time.Since(start)})
			return nil
		}
		log.Info("Plugin installed")
		m.emitter.Emit(events.Event{Name: events.PluginInitialized, PluginID: id, Plugin: d, Duration: time.Since(start)})
		return nil
	}

	start := time.Now()
	if err := m.call(ctx, id+".onInit", d.OnInit); err != nil {
		return m.fail(d, &InitError{PluginID: id, Err: err})
	}
	elapsed := time.Since(start)

	m.markInitialized(id)
	log.WithField("duration", elapsed).Info("Plugin initialized")
	m.emitter.Emit(events.Event{Name: events.PluginInitialized, PluginID: id, Plugin: d, Duration: elapsed})
	return nil
}

// fail reports an init failure. Optional plugins absorb it; everything else
// returns it to the caller.
func (m *Manager) fail(d *Descriptor, initErr *InitError) error {
	m.emitter.Emit(events.Event{Name: events.PluginError, PluginID: d.ID, Plugin: d, Err: initErr})

	if d.Optional {
		m.mu.Lock()
		m.failed[d.ID] = initErr
		m.mu.Unlock()
		m.log.WithField("plugin", d.ID).WithError(initErr.Err).Warn("Optional plugin failed to initialize")
		return nil
	}

	m.log.WithField("plugin", d.ID).WithError(initErr.Err).Error("Plugin failed to initialize")
	return initErr
}

func (m *Manager) failure(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failed[id]
}

func (m *Manager) markInitialized(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initializedSet[id] {
		m.initializedSet[id] = true
		m.initialized = append(m.initialized, id)
	}
}

// Destroy tears down initialized plugins in reverse initialization order and
// then clears the registry and shared state. OnDestroy failures are reported
// and do not stop the teardown; they are returned joined for logging.
func (m *Manager) Destroy(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.RLock()
	initialized := append([]string(nil), m.initialized...)
	registered := append([]string(nil), m.order...)
	descs := make(map[string]*Descriptor, len(m.plugins))
	for id, d := range m.plugins {
		descs[id] = d
	}
	m.mu.RUnlock()

	var errs []error
	for i := len(initialized) - 1; i >= 0; i-- {
		id := initialized[i]
		d := descs[id]
		start := time.Now()
		if err := m.call(ctx, id+".onDestroy", d.OnDestroy); err != nil {
			err = fmt.Errorf("destroy %s: %w", id, err)
			errs = append(errs, err)
			m.log.WithField("plugin", id).WithError(err).Error("Plugin teardown failed")
			m.emitter.Emit(events.Event{Name: events.PluginError, PluginID: id, Plugin: d, Err: err})
			continue
		}
		m.log.WithField("plugin", id).Info("Plugin destroyed")
		m.emitter.Emit(events.Event{Name: events.PluginDestroyed, PluginID: id, Plugin: d, Duration: time.Since(start)})
	}

	m.mu.Lock()
	for _, id := range registered {
		delete(m.plugins, id)
		delete(m.dependencies, id)
		delete(m.initializedSet, id)
		delete(m.failed, id)
	}
	m.order = remaining(m.order, descs)
	m.initialized = remaining(m.initialized, descs)
	m.state = make(map[string]any)
	m.mu.Unlock()

	m.log.WithField("count", len(initialized)).Info("Plugin manager destroyed")
	return errors.Join(errs...)
}

// remaining keeps ids registered after the teardown snapshot was taken
func remaining(ids []string, removed map[string]*Descriptor) []string {
	var kept []string
	for _, id := range ids {
		if _, ok := removed[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrLifecycleBusy
	}
	m.running = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Manager) call(ctx context.Context, task string, fn LifecycleFunc) error {
	if fn == nil {
		return nil
	}
	return async.SafeCall(ctx, m.hookTimeout, task, func(ctx context.Context) error {
		return fn(ctx, m)
	})
}

func (m *Manager) knownIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.plugins)
}

// Plugin returns the descriptor registered under id
func (m *Manager) Plugin(id string) (*Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.plugins[id]
	return d, ok
}

// Plugins returns all descriptors in registration order
func (m *Manager) Plugins() []*Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Descriptor, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.plugins[id])
	}
	return result
}

// Info returns read-only views of all plugins in registration order
func (m *Manager) Info() []PluginInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(m.order))
	for _, id := range m.order {
		infos = append(infos, m.infoLocked(m.plugins[id]))
	}
	return infos
}

// PluginInfo returns the read-only view of one plugin
func (m *Manager) PluginInfo(id string) (PluginInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.plugins[id]
	if !ok {
		return PluginInfo{}, false
	}
	return m.infoLocked(d), true
}

func (m *Manager) infoLocked(d *Descriptor) PluginInfo {
	deps := append([]string{}, d.Dependencies...)
	routes := append([]Route{}, d.Routes...)
	return PluginInfo{
		ID:           d.ID,
		Name:         d.Name,
		Version:      d.Version,
		Dependencies: deps,
		Optional:     d.Optional,
		Initialized:  m.initializedSet[d.ID],
		Components:   sortedKeys(d.Components),
		Hooks:        sortedKeys(d.Hooks),
		Routes:       routes,
	}
}

// Component looks up a component by plugin and name
func (m *Manager) Component(pluginID, name string) (any, bool) {
	d, ok := m.Plugin(pluginID)
	if !ok {
		return nil, false
	}
	c, ok := d.Components[name]
	return c, ok
}

// Hook looks up a hook by plugin and name
func (m *Manager) Hook(pluginID, name string) (HookFunc, bool) {
	d, ok := m.Plugin(pluginID)
	if !ok {
		return nil, false
	}
	h, ok := d.Hooks[name]
	return h, ok
}

// Routes concatenates the routes of all registered plugins in registration order
func (m *Manager) Routes() []Route {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var routes []Route
	for _, id := range m.order {
		routes = append(routes, m.plugins[id].Routes...)
	}
	return routes
}

// IsInitialized reports whether id finished initialization
func (m *Manager) IsInitialized(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initializedSet[id]
}

// InitializedPlugins returns initialized plugin IDs in initialization order
func (m *Manager) InitializedPlugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.initialized...)
}

// ExecuteHook calls the named hook on every registered plugin that defines
// it, in registration order. A failing or panicking hook is reported as a
// plugin:error event carrying a *HookExecutionError and left out of the
// results; the remaining plugins still run.
func (m *Manager) ExecuteHook(ctx context.Context, name string, args ...any) []HookResult {
	results, _ := m.RunHook(ctx, name, args...)
	return results
}

// RunHook behaves like ExecuteHook and also returns the failures of this
// call, in registration order
func (m *Manager) RunHook(ctx context.Context, name string, args ...any) ([]HookResult, []*HookExecutionError) {
	descs := m.Plugins()

	var results []HookResult
	var failures []*HookExecutionError
	for _, d := range descs {
		hook, ok := d.Hooks[name]
		if !ok {
			continue
		}

		var value any
		err := async.SafeCall(ctx, m.hookTimeout, d.ID+"."+name, func(ctx context.Context) error {
			var err error
			value, err = hook(ctx, args...)
			return err
		})
		if err != nil {
			hookErr := &HookExecutionError{PluginID: d.ID, Hook: name, Err: err}
			m.log.WithFields(logrus.Fields{"plugin": d.ID, "hook": name}).WithError(err).Warn("Plugin hook failed")
			m.emitter.Emit(events.Event{Name: events.PluginError, PluginID: d.ID, Plugin: d, Err: hookErr})
			failures = append(failures, hookErr)
			continue
		}
		results = append(results, HookResult{PluginID: d.ID, Value: value})
	}
	return results, failures
}

// SetState stores value under key and emits state:changed with the full
// snapshot
func (m *Manager) SetState(key string, value any) {
	m.mu.Lock()
	m.state[key] = value
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.emitter.Emit(events.Event{Name: events.StateChanged, State: snapshot})
}

// RestoreState merges a previously persisted snapshot into the shared state
// and emits a single state:changed
func (m *Manager) RestoreState(values map[string]any) {
	if len(values) == 0 {
		return
	}

	m.mu.Lock()
	for k, v := range values {
		m.state[k] = v
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.log.WithField("keys", len(values)).Debug("Shared state restored")
	m.emitter.Emit(events.Event{Name: events.StateChanged, State: snapshot})
}

// State returns the value stored under key
func (m *Manager) State(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.state[key]
	return v, ok
}

// AllState returns a copy of the shared state
func (m *Manager) AllState() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() map[string]any {
	snapshot := make(map[string]any, len(m.state))
	for k, v := range m.state {
		snapshot[k] = v
	}
	return snapshot
}

// StateKeys returns the shared state keys in sorted order
func (m *Manager) StateKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.state))
	for k := range m.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
