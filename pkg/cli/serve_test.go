package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/campus/pkg/config"
	"github.com/platinummonkey/campus/pkg/plugins"
	"github.com/platinummonkey/campus/pkg/storage"
)

func testConfig(dirs ...string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ShutdownTimeout: 5 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Plugins: config.PluginsConfig{
			Mode: plugins.ModeStrict,
			Dirs: dirs,
		},
		Storage: storage.DefaultConfig(),
		Observability: config.ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "text",
			MetricsEnabled: true,
		},
	}
}

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestNewAppLoadsAndInitializesPlugins(t *testing.T) {
	root := t.TempDir()
	writeCourseManifests(t, root)

	var greeted []any
	bindings := map[string]plugins.Binding{
		"feed": {
			Hooks: map[string]plugins.HookFunc{
				"greet": func(ctx context.Context, args ...any) (any, error) {
					greeted = append(greeted, args...)
					return "hi", nil
				},
			},
		},
	}

	a, err := newApp(context.Background(), testConfig(root), newTestLogger(), bindings)
	require.NoError(t, err)
	defer a.shutdown.Shutdown(context.Background())

	assert.Equal(t, []string{"core", "feed", "quiz"}, a.manager.InitializedPlugins())

	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/routes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"path":"/","component":"Layout"},{"path":"/feed","component":"Feed"}]`, w.Body.String())

	results := a.manager.ExecuteHook(context.Background(), "greet", "ada")
	require.Len(t, results, 1)
	assert.Equal(t, []any{"ada"}, greeted)

	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campus_plugins_initialized 3")
	assert.Contains(t, w.Body.String(), "campus_plugin_registrations_total 3")
}

func TestNewAppStrictInitFailure(t *testing.T) {
	root := t.TempDir()
	writeCourseManifests(t, root)

	destroyed := false
	bindings := map[string]plugins.Binding{
		"core": {
			OnDestroy: func(ctx context.Context, m *plugins.Manager) error {
				destroyed = true
				return nil
			},
		},
		"feed": {
			OnInit: func(ctx context.Context, m *plugins.Manager) error {
				return errors.New("feed backend unreachable")
			},
		},
	}

	_, err := newApp(context.Background(), testConfig(root), newTestLogger(), bindings)

	require.Error(t, err)
	assert.ErrorIs(t, err, plugins.ErrPluginInit)
	assert.True(t, destroyed, "initialized plugins are torn down when startup fails")
}

func TestNewAppLenientInitFailure(t *testing.T) {
	root := t.TempDir()
	writeCourseManifests(t, root)

	cfg := testConfig(root)
	cfg.Plugins.Mode = plugins.ModeLenient
	bindings := map[string]plugins.Binding{
		"feed": {
			OnInit: func(ctx context.Context, m *plugins.Manager) error {
				return errors.New("feed backend unreachable")
			},
		},
	}

	a, err := newApp(context.Background(), cfg, newTestLogger(), bindings)
	require.NoError(t, err)
	defer a.shutdown.Shutdown(context.Background())

	assert.True(t, a.manager.IsInitialized("feed"))
}

func TestAppRunPersistsStateAcrossRestarts(t *testing.T) {
	root := t.TempDir()
	writeCourseManifests(t, root)
	store := storage.NewMemoryStore()

	a, err := newAppWithStore(context.Background(), testConfig(root), newTestLogger(), nil, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	a.manager.SetState("theme", "dark")
	a.manager.SetState("unread", 4)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	assert.Empty(t, a.manager.InitializedPlugins())

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "unread": 4}, saved)

	restarted, err := newAppWithStore(context.Background(), testConfig(root), newTestLogger(), nil, store)
	require.NoError(t, err)
	defer restarted.shutdown.Shutdown(context.Background())

	value, ok := restarted.manager.State("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", value)
}

func TestApplyServeFlags(t *testing.T) {
	cfg := testConfig()

	err := applyServeFlags(cfg, []string{"-port", "9000", "-mode", "LENIENT", "-dirs", "/a,/b", "-watch"})

	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, plugins.ModeLenient, cfg.Plugins.Mode)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Plugins.Dirs)
	assert.True(t, cfg.Plugins.Watch)

	assert.Error(t, applyServeFlags(testConfig(), []string{"-mode", "loose"}))
}

func TestPluginsHealthy(t *testing.T) {
	a := &app{manager: plugins.NewManager(plugins.WithLogger(newTestLogger()))}
	require.NoError(t, a.manager.Register(&plugins.Descriptor{ID: "core", Name: "Core", Version: "1.0.0"}))

	err := a.pluginsHealthy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core")

	require.NoError(t, a.manager.Initialize(context.Background()))
	assert.NoError(t, a.pluginsHealthy(context.Background()))

	body, _ := json.Marshal(a.manager.Info())
	assert.Contains(t, string(body), `"initialized":true`)
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name      string
		server    config.ServerConfig
		wantRate  int
		wantBurst int
	}{
		{name: "configured burst", server: config.ServerConfig{RateLimit: 30, RateLimitBurst: 5}, wantRate: 30, wantBurst: 5},
		{name: "zero burst keeps default", server: config.ServerConfig{RateLimit: 30}, wantRate: 30, wantBurst: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := rateLimitConfig(tt.server)

			assert.Equal(t, tt.wantRate, rl.RequestsPerWindow)
			assert.Equal(t, tt.wantBurst, rl.BurstSize)
			assert.Equal(t, time.Minute, rl.WindowDuration)
		})
	}
}
