package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader discovers plugin manifests in directories and registers them with a
// Manager, attaching the Go bindings known for their IDs
type Loader struct {
	pluginDirs []string
	bindings   map[string]Binding
	mu         sync.RWMutex
	log        logrus.FieldLogger
}

// NewLoader creates a new plugin loader
func NewLoader(dirs []string, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.New()
	}

	return &Loader{
		pluginDirs: dirs,
		bindings:   make(map[string]Binding),
		log:        log,
	}
}

// Bind attaches hooks, components and lifecycle callbacks to the manifest
// with the given plugin ID
func (l *Loader) Bind(id string, b Binding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings[id] = b
}

func (l *Loader) binding(id string) Binding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bindings[id]
}

// Dirs returns the directories the loader scans
func (l *Loader) Dirs() []string {
	return append([]string(nil), l.pluginDirs...)
}

// DiscoverManifests scans plugin directories for <dir>/<plugin>/plugin.yaml.
// Unreadable or invalid manifests are logged and skipped.
func (l *Loader) DiscoverManifests(ctx context.Context) ([]*Manifest, error) {
	var manifests []*Manifest
	seen := make(map[string]string)

	for _, dir := range l.pluginDirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			l.log.Debugf("Plugin directory does not exist: %s", dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pluginDir := filepath.Join(dir, entry.Name())
			manifest, err := l.loadManifest(pluginDir)
			if err != nil {
				l.log.Warnf("Failed to load plugin from %s: %v", pluginDir, err)
				continue
			}
			if prev, dup := seen[manifest.ID]; dup {
				l.log.Warnf("Skipping plugin %s in %s, already found in %s", manifest.ID, pluginDir, prev)
				continue
			}
			seen[manifest.ID] = pluginDir
			manifests = append(manifests, manifest)
		}
	}

	return manifests, nil
}

func (l *Loader) loadManifest(pluginDir string) (*Manifest, error) {
	manifest, err := LoadManifestFromDir(pluginDir)
	if err != nil {
		return nil, err
	}
	if errs := ValidateManifest(manifest); len(errs) > 0 {
		return nil, fmt.Errorf("manifest validation failed: %w", &errs[0])
	}
	return manifest, nil
}

// Register registers manifests with m so that manifests depending on each
// other are registered dependencies first. It returns the IDs that were
// registered; manifests rejected by the manager are logged and skipped.
func (l *Loader) Register(m *Manager, manifests []*Manifest) ([]string, error) {
	byID := make(map[string]*Manifest, len(manifests))
	ids := make([]string, 0, len(manifests))
	deps := make(map[string][]string, len(manifests))
	for _, manifest := range manifests {
		if _, dup := byID[manifest.ID]; dup {
			continue
		}
		byID[manifest.ID] = manifest
		ids = append(ids, manifest.ID)
		deps[manifest.ID] = manifest.Dependencies
	}

	order, err := ResolveSubset(ids, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to order manifests: %w", err)
	}

	registered := make([]string, 0, len(order))
	for _, id := range order {
		manifest := byID[id]
		if err := m.Register(manifest.Descriptor(l.binding(id))); err != nil {
			l.log.WithField("plugin", id).WithError(err).Warn("Failed to register plugin manifest")
			continue
		}
		registered = append(registered, id)
	}

	l.log.Infof("Registered %d of %d plugin manifests", len(registered), len(order))
	return registered, nil
}

// Load discovers manifests and registers them with m
func (l *Loader) Load(ctx context.Context, m *Manager) ([]string, error) {
	manifests, err := l.DiscoverManifests(ctx)
	if err != nil {
		return nil, err
	}
	return l.Register(m, manifests)
}

// GetDefaultPluginDirectories returns the default plugin search directories
func GetDefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}

	return []string{
		filepath.Join(homeDir, ".campus", "plugins"),
		"/etc/campus/plugins",
		"./plugins", // Current directory
	}
}
