package plugins

import (
	"context"
)

// Descriptor is the unit of registration: a plugin's identity, capabilities
// and lifecycle callbacks
type Descriptor struct {
	ID           string              // Unique ID (e.g., "social-feed")
	Name         string              // Display name
	Version      string              // Free-form, never compared
	Components   map[string]any      // Renderable units, opaque to the manager
	Hooks        map[string]HookFunc // Named cross-plugin extension points
	Routes       []Route             // Passive route data aggregated across plugins
	Dependencies []string            // Plugin IDs that must be initialized first
	Optional     bool                // Init failure is reported but never fatal
	OnInit       LifecycleFunc
	OnDestroy    LifecycleFunc
}

// Route describes a page a plugin contributes to the shell
type Route struct {
	Path      string   `json:"path" yaml:"path"`
	Component string   `json:"component" yaml:"component"`
	Guards    []string `json:"guards,omitempty" yaml:"guards"`
}

// HookFunc is a named function other plugins can invoke through ExecuteHook
type HookFunc func(ctx context.Context, args ...any) (any, error)

// LifecycleFunc is called once when a plugin is initialized or destroyed.
// It receives the manager so it can look up other plugins or shared state.
type LifecycleFunc func(ctx context.Context, m *Manager) error

// HookResult is one successful hook invocation
type HookResult struct {
	PluginID string `json:"plugin_id"`
	Value    any    `json:"value"`
}

// Mode selects the failure policy of lifecycle operations
type Mode int

const (
	// ModeStrict requires dependencies to be registered first, marks a plugin
	// initialized only after OnInit succeeds and propagates init failures.
	ModeStrict Mode = iota
	// ModeLenient accepts forward dependency references, marks a plugin
	// initialized before OnInit runs and logs init failures instead of
	// returning them.
	ModeLenient
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeLenient:
		return "lenient"
	default:
		return "unknown"
	}
}

// ParseMode converts "strict" or "lenient" into a Mode
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "strict", "":
		return ModeStrict, true
	case "lenient":
		return ModeLenient, true
	default:
		return ModeStrict, false
	}
}

// PluginInfo is a read-only view of a registered plugin
type PluginInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies"`
	Optional     bool     `json:"optional"`
	Initialized  bool     `json:"initialized"`
	Components   []string `json:"components"`
	Hooks        []string `json:"hooks"`
	Routes       []Route  `json:"routes"`
}
