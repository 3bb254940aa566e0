package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/campus/pkg/api"
	"github.com/platinummonkey/campus/pkg/config"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/plugins"
	"github.com/platinummonkey/campus/pkg/storage"
	"github.com/platinummonkey/campus/pkg/storage/postgres"
)

// Version is reported by the health endpoints
var Version = "dev"

func newServeCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "serve",
		Description: "Load plugins and serve the plugin API",
		Flags:       flag.NewFlagSet("serve", flag.ContinueOnError),
		Out:         out,
	}
	cmd.Run = runServe

	cmd.Flags.String("port", "", "Port to listen on (overrides CAMPUS_PORT)")
	cmd.Flags.String("mode", "", "Plugin mode: strict or lenient (overrides CAMPUS_PLUGIN_MODE)")
	cmd.Flags.String("dirs", "", "Comma separated plugin directories (overrides CAMPUS_PLUGIN_DIRS)")
	cmd.Flags.Bool("watch", false, "Install plugins dropped into the plugin directories")

	return cmd
}

func runServe(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg, args); err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg, log, nil)
}

// applyServeFlags overrides cfg with the serve command line flags
func applyServeFlags(cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := flags.String("port", "", "Port to listen on (overrides CAMPUS_PORT)")
	mode := flags.String("mode", "", "Plugin mode: strict or lenient (overrides CAMPUS_PLUGIN_MODE)")
	dirs := flags.String("dirs", "", "Comma separated plugin directories (overrides CAMPUS_PLUGIN_DIRS)")
	watch := flags.Bool("watch", false, "Install plugins dropped into the plugin directories")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *mode != "" {
		m, ok := plugins.ParseMode(strings.ToLower(*mode))
		if !ok {
			return fmt.Errorf("invalid plugin mode: %s (must be strict or lenient)", *mode)
		}
		cfg.Plugins.Mode = m
	}
	if *dirs != "" {
		cfg.Plugins.Dirs = splitList(*dirs)
	}
	if *watch {
		cfg.Plugins.Watch = true
	}
	return cfg.Validate()
}

// Serve loads plugins from cfg's directories, initializes them and serves
// the plugin API until ctx is cancelled. bindings attach Go hooks and
// lifecycle callbacks to manifest-declared plugins by ID.
func Serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, bindings map[string]plugins.Binding) error {
	app, err := newApp(ctx, cfg, log, bindings)
	if err != nil {
		return err
	}
	return app.run(ctx)
}

// app holds the wired components of a running server
type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	manager  *plugins.Manager
	loader   *plugins.Loader
	watcher  *plugins.Watcher
	store    storage.StateStore
	persist  *storage.Persister
	registry *prometheus.Registry
	health   *observability.HealthChecker
	limiter  *middleware.RateLimiter
	server   *http.Server
	shutdown *observability.ShutdownManager
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, bindings map[string]plugins.Binding) (*app, error) {
	store, err := postgres.NewStateStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	return newAppWithStore(ctx, cfg, log, bindings, store)
}

// newAppWithStore wires the server around an already opened store. The app
// owns store from here on and closes it on failure and shutdown.
func newAppWithStore(ctx context.Context, cfg *config.Config, log *logrus.Logger, bindings map[string]plugins.Binding, store storage.StateStore) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		shutdown: observability.NewShutdownManager(log, cfg.Server.ShutdownTimeout),
		health:   observability.NewHealthChecker(Version),
	}

	a.manager = plugins.NewManager(
		plugins.WithMode(cfg.Plugins.Mode),
		plugins.WithLogger(log),
		plugins.WithHookTimeout(cfg.Plugins.HookTimeout),
	)

	// Metrics subscribe before anything is registered
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(a.registry)
		if _, err := metrics.Observe(a.manager); err != nil {
			store.Close()
			return nil, err
		}
	}

	a.store = store
	a.shutdown.RegisterShutdownFunc("state-store", func(ctx context.Context) error {
		return a.store.Close()
	})
	a.health.AddCheck("state_store", store.HealthCheck)

	a.persist = storage.NewPersister(store, log, cfg.Storage.SaveTimeout)
	if err := a.persist.Restore(ctx, a.manager); err != nil {
		a.store.Close()
		return nil, err
	}
	a.persist.Attach(a.manager)
	a.shutdown.RegisterShutdownFunc("state-persister", func(ctx context.Context) error {
		defer a.persist.Detach()
		return a.persist.Flush(ctx)
	})

	a.loader = plugins.NewLoader(cfg.Plugins.Dirs, log)
	for id, b := range bindings {
		a.loader.Bind(id, b)
	}
	if _, err := a.loader.Load(ctx, a.manager); err != nil {
		a.store.Close()
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	if err := a.manager.Initialize(ctx); err != nil {
		if destroyErr := a.manager.Destroy(ctx); destroyErr != nil {
			log.WithError(destroyErr).Warn("Failed to tear down partially initialized plugins")
		}
		a.store.Close()
		return nil, fmt.Errorf("failed to initialize plugins: %w", err)
	}
	a.shutdown.RegisterShutdownFunc("plugins", a.manager.Destroy)
	a.health.AddOptionalCheck("plugins", a.pluginsHealthy)

	if cfg.Plugins.Watch {
		a.watcher = plugins.NewWatcher(a.loader, a.manager, log)
	}

	opts := []api.Option{
		api.WithLogger(log),
		api.WithHealthChecker(a.health),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if metrics != nil {
		opts = append(opts, api.WithMetrics(metrics, a.registry))
	}
	if cfg.Server.RateLimit > 0 {
		a.limiter = middleware.NewRateLimiter(rateLimitConfig(cfg.Server))
		opts = append(opts, api.WithRateLimiter(a.limiter))
	}

	a.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(a.manager, opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

// rateLimitConfig applies the configured per-minute rate to the default
// limiter settings. A zero burst keeps the default burst.
func rateLimitConfig(server config.ServerConfig) *middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerWindow = server.RateLimit
	if server.RateLimitBurst > 0 {
		rl.BurstSize = server.RateLimitBurst
	}
	return rl
}

// pluginsHealthy fails when a required plugin is registered but not initialized
func (a *app) pluginsHealthy(ctx context.Context) error {
	var pending []string
	for _, info := range a.manager.Info() {
		if !info.Optional && !info.Initialized {
			pending = append(pending, info.ID)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("plugins not initialized: %s", strings.Join(pending, ", "))
	}
	return nil
}

// run serves until ctx is cancelled or a component fails, then shuts down
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.WithField("addr", a.server.Addr).Info("Starting campus plugin server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.persist.Run(gctx)
	})

	if a.watcher != nil {
		g.Go(func() error {
			return a.watcher.Run(gctx)
		})
	}

	if a.limiter != nil {
		g.Go(func() error {
			return a.limiter.RunCleanup(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	// Components stop only after the server and the persister loop have returned
	runErr := g.Wait()
	if err := a.shutdown.Shutdown(context.Background()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
