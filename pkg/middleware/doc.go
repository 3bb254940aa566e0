// Package middleware provides HTTP rate limiting for the plugin API.
//
// RateLimiter is an in-memory token bucket keyed by client. Each key starts
// with RequestsPerWindow+BurstSize tokens and refills continuously at
// RequestsPerWindow per WindowDuration.
//
//	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 60,
//		WindowDuration:    time.Minute,
//		BurstSize:         10,
//	})
//	go limiter.RunCleanup(ctx)
//	handler = middleware.RateLimit(limiter, log)(handler)
package middleware
