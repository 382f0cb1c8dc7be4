package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/tracing"
)

// CORSConfig lists who may call the API from a browser. Preview host
// pages are same-origin; this covers editors on other origins.
type CORSConfig struct {
	Origins      []string
	Methods      []string
	Headers      []string
	Expose       []string
	Credentials  bool
	PreflightTTL time.Duration
}

// DefaultCORSConfig allows the given editor origins. With no origins any
// site may read responses, but never with credentials.
func DefaultCORSConfig(origins ...string) CORSConfig {
	cfg := CORSConfig{
		Origins:      origins,
		Methods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		Headers:      []string{"Origin", "Accept", "Content-Type", "Cache-Control", tracing.TraceHeader, tracing.SpanHeader},
		Expose:       []string{tracing.TraceHeader, tracing.SpanHeader, "Content-Disposition"},
		Credentials:  true,
		PreflightTTL: 12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.Origins = []string{"*"}
		cfg.Credentials = false
	}
	return cfg
}

// CORS applies cfg. Websocket upgrades from allowed origins pass.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.Origins,
		AllowMethods:     cfg.Methods,
		AllowHeaders:     cfg.Headers,
		ExposeHeaders:    cfg.Expose,
		AllowCredentials: cfg.Credentials,
		MaxAge:           cfg.PreflightTTL,
		AllowWebSockets:  true,
	})
}
