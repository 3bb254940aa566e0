package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name looked up inside a plugin directory
const ManifestFile = "plugin.yaml"

// Manifest is the on-disk, declarative half of a plugin: identity,
// dependencies and passive route/component data. Behavior (hooks and
// lifecycle callbacks) is attached in Go through a Binding.
type Manifest struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Optional     bool              `yaml:"optional,omitempty" json:"optional,omitempty"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Components   map[string]string `yaml:"components,omitempty" json:"components,omitempty"` // component name -> bundle reference
	Routes       []Route           `yaml:"routes,omitempty" json:"routes,omitempty"`
	Metadata     map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Binding supplies the Go side of a manifest-declared plugin
type Binding struct {
	Components map[string]any
	Hooks      map[string]HookFunc
	OnInit     LifecycleFunc
	OnDestroy  LifecycleFunc
}

// LoadManifest loads and parses a plugin manifest from a file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads a plugin manifest from a directory (looks for plugin.yaml)
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// SaveManifest saves a plugin manifest to a file
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest checks the manifest as the descriptor it would produce
func ValidateManifest(manifest *Manifest) []ValidationError {
	if manifest == nil {
		return ValidateDescriptor(nil)
	}
	return ValidateDescriptor(manifest.Descriptor(Binding{}))
}

// Descriptor builds a registrable descriptor from the manifest and its
// binding. Binding components take precedence over bundle references with
// the same name.
func (m *Manifest) Descriptor(b Binding) *Descriptor {
	var components map[string]any
	if len(m.Components) > 0 || len(b.Components) > 0 {
		components = make(map[string]any, len(m.Components)+len(b.Components))
		for name, ref := range m.Components {
			components[name] = ref
		}
		for name, c := range b.Components {
			components[name] = c
		}
	}

	name := m.Name
	if name == "" {
		name = m.ID
	}

	return &Descriptor{
		ID:           m.ID,
		Name:         name,
		Version:      m.Version,
		Components:   components,
		Hooks:        b.Hooks,
		Routes:       append([]Route(nil), m.Routes...),
		Dependencies: append([]string(nil), m.Dependencies...),
		Optional:     m.Optional,
		OnInit:       b.OnInit,
		OnDestroy:    b.OnDestroy,
	}
}
