// Package observability provides structured logging, Prometheus metrics, health checks
// and ordered shutdown for the campus host.
//
// # Structured Logging
//
// Create logger:
//
//	log, err := observability.NewLogger("info", "json", os.Stdout)
//	log.WithField("plugin", "feed").Info("Plugin initialized")
//
// Request scoped logging:
//
//	ctx = observability.WithRequestID(ctx, id)
//	observability.FromContext(ctx).Warn("Hook failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.Observe(manager)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// Lifecycle counters are fed by manager events; the registered and
// initialized gauges read the manager on every scrape.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("state_store", store.HealthCheck)
//	router.HandleFunc("/health/ready", checker.Readiness)
package observability
