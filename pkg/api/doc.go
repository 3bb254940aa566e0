// Package api exposes the plugin manager to the app shell over HTTP.
//
// The shell uses these endpoints to discover what the installed plugins
// contribute and to share state between them:
//
//	GET  /api/plugins               list plugins
//	GET  /api/plugins/{id}          one plugin
//	POST /api/plugins/{id}/install  lazy install with dependencies
//	GET  /api/routes                routes in registration order
//	GET  /api/components            component names per plugin
//	GET  /api/state                 shared state snapshot
//	GET  /api/state/{key}           one shared state value
//	PUT  /api/state/{key}           set a shared state value
//	POST /api/hooks/{name}          run a hook on every plugin that defines it
//
// Usage:
//
//	server := api.NewServer(manager,
//		api.WithLogger(log),
//		api.WithMetrics(metrics, registry),
//		api.WithHealthChecker(health),
//	)
//	http.ListenAndServe(":8080", server)
package api
