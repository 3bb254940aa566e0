package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/httputil"
	"github.com/platinummonkey/campus/pkg/middleware"
	"github.com/platinummonkey/campus/pkg/observability"
	"github.com/platinummonkey/campus/pkg/plugins"
)

// Server exposes the plugin manager to the app shell over HTTP
type Server struct {
	manager *plugins.Manager
	router  *mux.Router
	log     logrus.FieldLogger

	metrics        *observability.Metrics
	registry       *prometheus.Registry
	health         *observability.HealthChecker
	allowedOrigins []string
	maxBodyBytes   int64
	rateLimiter    *middleware.RateLimiter
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used by the request middleware
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics instruments every route and serves /metrics from registry
func WithMetrics(metrics *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// WithHealthChecker serves /health/live and /health/ready
func WithHealthChecker(h *observability.HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithAllowedOrigins enables CORS for the given origins
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithMaxBodyBytes limits request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithRateLimiter limits the endpoints that change plugin or shared state
func WithRateLimiter(rl *middleware.RateLimiter) Option {
	return func(s *Server) { s.rateLimiter = rl }
}

// NewServer creates a new API server
func NewServer(manager *plugins.Manager, opts ...Option) *Server {
	s := &Server{
		manager:      manager,
		router:       mux.NewRouter(),
		log:          logrus.StandardLogger(),
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs the middleware chain, outermost first
func (s *Server) setupMiddleware() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.log))
	s.router.Use(httputil.RecoveryMiddleware(s.log))
	if len(s.allowedOrigins) > 0 {
		s.router.Use(httputil.CORSMiddleware(s.allowedOrigins))
	}
	if s.maxBodyBytes > 0 {
		s.router.Use(httputil.MaxBytesMiddleware(s.maxBodyBytes))
	}
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))
	}
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Plugin routes
	s.router.HandleFunc("/api/plugins", s.listPlugins).Methods("GET")
	s.router.HandleFunc("/api/plugins/{id}", s.getPlugin).Methods("GET")
	s.router.Handle("/api/plugins/{id}/install", s.limited(s.installPlugin)).Methods("POST")

	// Contributions
	s.router.HandleFunc("/api/routes", s.listRoutes).Methods("GET")
	s.router.HandleFunc("/api/components", s.listComponents).Methods("GET")

	// Shared state
	s.router.HandleFunc("/api/state", s.getState).Methods("GET")
	s.router.HandleFunc("/api/state/{key}", s.getStateKey).Methods("GET")
	s.router.Handle("/api/state/{key}", s.limited(s.setStateKey)).Methods("PUT")

	// Hooks
	s.router.Handle("/api/hooks/{name}", s.limited(s.executeHook)).Methods("POST")

	if s.health != nil {
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}
}

// limited applies the rate limiter, when configured, to a single route
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if s.rateLimiter == nil {
		return h
	}
	return middleware.RateLimit(s.rateLimiter, s.log)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router so callers can mount extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// routeTemplate labels metrics with the matched route instead of the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
