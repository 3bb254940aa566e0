package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/plugins"
)

// writeManifest saves m as <root>/<dir>/plugin.yaml
func writeManifest(t *testing.T, root, dir string, m *plugins.Manifest) {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	require.NoError(t, plugins.SaveManifest(m, filepath.Join(pluginDir, plugins.ManifestFile)))
}

// writeRaw writes content as <root>/<dir>/plugin.yaml
func writeRaw(t *testing.T, root, dir, content string) {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, plugins.ManifestFile), []byte(content), 0644))
}

// writeCourseManifests lays out core <- feed <- quiz
func writeCourseManifests(t *testing.T, root string) {
	t.Helper()
	writeManifest(t, root, "quiz", &plugins.Manifest{
		ID:           "quiz",
		Name:         "Quizzes",
		Version:      "0.1.0",
		Dependencies: []string{"feed"},
		Optional:     true,
	})
	writeManifest(t, root, "feed", &plugins.Manifest{
		ID:           "feed",
		Name:         "Social Feed",
		Version:      "0.3.0",
		Dependencies: []string{"core"},
		Routes:       []plugins.Route{{Path: "/feed", Component: "Feed"}},
	})
	writeManifest(t, root, "core", &plugins.Manifest{
		ID:      "core",
		Name:    "Core",
		Version: "1.0.0",
		Routes:  []plugins.Route{{Path: "/", Component: "Layout"}},
	})
}
