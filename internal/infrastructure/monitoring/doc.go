/*
Package monitoring provides Prometheus metrics for the preview service.

# Overview

Metrics are registered through promauto against an injectable
registerer so tests can use isolated registries.

# Features

- HTTP request metrics (latency, throughput, size)
- Build metrics (result, duration, modules, warnings, document size)
- Document cache hit/miss counters
- Sandbox signal metrics (kind, source, timeouts, late signals)
- Deployment status transitions
- Third-party dependency reachability
- WebSocket connection metrics

# Usage

	metrics := monitoring.NewMetrics(nil)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer()
	result, err := builder.Build(project)
	metrics.RecordBuild("success", timer.Elapsed(), len(result.Modules), len(result.Warnings), len(result.Document))

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
