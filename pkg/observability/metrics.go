package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/campus/pkg/events"
	"github.com/platinummonkey/campus/pkg/plugins"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Plugin lifecycle metrics
	PluginRegistrationsTotal   prometheus.Counter
	PluginInitializationsTotal prometheus.Counter
	PluginDestructionsTotal    prometheus.Counter
	PluginErrorsTotal          *prometheus.CounterVec
	PluginInitDuration         prometheus.Histogram
	StateChangesTotal          prometheus.Counter
}

// PluginSource is the part of the plugin manager the metrics observe
type PluginSource interface {
	Events() *events.Emitter
	Plugins() []*plugins.Descriptor
	InitializedPlugins() []string
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campus_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Plugin lifecycle metrics
		PluginRegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_plugin_registrations_total",
				Help: "Total number of plugin registrations",
			},
		),
		PluginInitializationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_plugin_initializations_total",
				Help: "Total number of successful plugin initializations",
			},
		),
		PluginDestructionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_plugin_destructions_total",
				Help: "Total number of successful plugin teardowns",
			},
		),
		PluginErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_plugin_errors_total",
				Help: "Total number of plugin:error events",
			},
			[]string{"plugin", "kind"},
		),
		PluginInitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campus_plugin_init_duration_seconds",
				Help:    "Plugin OnInit duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
		),
		StateChangesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campus_state_changes_total",
				Help: "Total number of shared state changes",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.PluginRegistrationsTotal,
		m.PluginInitializationsTotal,
		m.PluginDestructionsTotal,
		m.PluginErrorsTotal,
		m.PluginInitDuration,
		m.StateChangesTotal,
	)

	return m
}

// Observe subscribes the lifecycle metrics to the source's events and
// registers gauges that read the source's current plugin counts. It must be
// called at most once per Metrics.
func (m *Metrics) Observe(source PluginSource) ([]events.Subscription, error) {
	registered := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "campus_plugins_registered",
			Help: "Number of registered plugins",
		},
		func() float64 { return float64(len(source.Plugins())) },
	)
	initialized := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "campus_plugins_initialized",
			Help: "Number of initialized plugins",
		},
		func() float64 { return float64(len(source.InitializedPlugins())) },
	)
	if err := m.registry.Register(registered); err != nil {
		return nil, fmt.Errorf("failed to register plugin gauge: %w", err)
	}
	if err := m.registry.Register(initialized); err != nil {
		m.registry.Unregister(registered)
		return nil, fmt.Errorf("failed to register plugin gauge: %w", err)
	}

	emitter := source.Events()
	return []events.Subscription{
		emitter.On(events.PluginRegistered, func(events.Event) {
			m.PluginRegistrationsTotal.Inc()
		}),
		emitter.On(events.PluginInitialized, func(ev events.Event) {
			m.PluginInitializationsTotal.Inc()
			m.PluginInitDuration.Observe(ev.Duration.Seconds())
		}),
		emitter.On(events.PluginDestroyed, func(events.Event) {
			m.PluginDestructionsTotal.Inc()
		}),
		emitter.On(events.PluginError, func(ev events.Event) {
			m.PluginErrorsTotal.WithLabelValues(ev.PluginID, errorKind(ev.Err)).Inc()
		}),
		emitter.On(events.StateChanged, func(events.Event) {
			m.StateChangesTotal.Inc()
		}),
	}, nil
}

func errorKind(err error) string {
	var initErr *plugins.InitError
	var hookErr *plugins.HookExecutionError
	switch {
	case errors.As(err, &initErr):
		return "init"
	case errors.As(err, &hookErr):
		return "hook"
	default:
		return "other"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// pathLabel maps a request to a low-cardinality label such as the matched
// route template; nil uses the raw URL path.
func HTTPMetricsMiddleware(metrics *Metrics, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	if pathLabel == nil {
		pathLabel = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := pathLabel(r)

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
