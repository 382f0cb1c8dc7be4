// Package main is the entry point for the preview server.
//
// The server stores project files, links them into a self-contained
// preview document, serves live preview host pages that reload over a
// websocket, optionally verifies documents in a headless sandbox and
// publishes permanent deployments.
//
// Configuration:
//   - Environment variables (12-factor), optionally from a .env file
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# In-memory projects
//	./server -port 8000
//
//	# Projects from a directory, reloaded on edit
//	./server -storage disk -dir ./projects -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
