// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error responses,
// path parameter parsing, and the middleware shared by the campus HTTP API.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, plugins)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteNotFoundError(w, "plugin not found")
//
// # Middleware
//
//	router.Use(httputil.RequestIDMiddleware)
//	router.Use(httputil.LoggingMiddleware(log))
//	router.Use(httputil.RecoveryMiddleware(log))
package httputil
