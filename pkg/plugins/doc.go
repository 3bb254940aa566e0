// Package plugins manages the lifecycle of the shell's feature plugins.
//
// # Overview
//
// A plugin is described by a Descriptor: an ID, opaque components, named
// hooks, passive routes, dependencies and optional OnInit/OnDestroy
// callbacks. The Manager validates and registers descriptors, initializes
// them dependencies first, tears them down in reverse order and offers
// lookups, cross-plugin hook execution and a shared state blackboard.
//
// # Modes
//
// ModeStrict: dependencies must be registered before their dependents, a
// plugin counts as initialized only after OnInit succeeds and failures are
// returned to the caller.
//
// ModeLenient: forward references are accepted, plugins are marked
// installed before OnInit runs and failures are logged and emitted as
// plugin:error events.
//
// Optional plugins never abort Initialize; a failed optional plugin stays
// registered but uninitialized.
//
// # Manifests
//
// Plugins can also be declared on disk as plugin.yaml files. The Loader
// discovers them and attaches Go behavior through Bindings; the Watcher
// installs manifests that appear while the host runs.
//
// # Usage Example
//
//	m := plugins.NewManager(plugins.WithLogger(log))
//	err := m.Register(
//		&plugins.Descriptor{ID: "core", Version: "1.0.0"},
//		&plugins.Descriptor{ID: "feed", Version: "1.0.0", Dependencies: []string{"core"}},
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := m.Initialize(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer m.Destroy(context.Background())
//
//	results := m.ExecuteHook(ctx, "search", "golang")
//
// # Related Packages
//
//   - pkg/events: Lifecycle and state events
//   - pkg/storage: Shared state persistence
//   - pkg/api: HTTP view of the manager
package plugins
