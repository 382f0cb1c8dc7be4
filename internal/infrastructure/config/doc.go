// Package config provides 12-factor configuration management for the
// preview service.
//
// Configuration is loaded from an optional .env file and environment
// variables with sensible defaults. CLI flags can override the port.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Storage: Project store backend (memory, disk, postgres)
//   - Artifacts: Deployment artifact backend (memory, s3)
//   - Sandbox: Signal timeout and headless execution limits
//   - CDN: Third-party script origins and probe cadence
//   - Cache: Assembled document cache size
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
