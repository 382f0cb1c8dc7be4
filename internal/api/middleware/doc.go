// Package middleware provides the HTTP middleware stack of the preview
// server.
//
//   - CORS: allowed origins come from ALLOWED_ORIGINS; websocket upgrades
//     are allowed
//   - RateLimit: per-IP token buckets with idle client eviction; health
//     and metrics endpoints are exempt
//   - Logger and Recovery: structured request logging and panic recovery
//     through zap
//
// Example Usage:
//
//	router.Use(middleware.Logger(logger), middleware.Recovery(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
