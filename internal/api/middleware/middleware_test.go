package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(router *gin.Engine, method, path, remote, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
		if method == http.MethodOptions {
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig("http://localhost:3000")))
	router.GET("/api/projects", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"projects": []string{}})
	})

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantHeader string
	}{
		{name: "allowed origin", method: "GET", origin: "http://localhost:3000", wantStatus: http.StatusOK, wantHeader: "http://localhost:3000"},
		{name: "preflight", method: "OPTIONS", origin: "http://localhost:3000", wantStatus: http.StatusNoContent, wantHeader: "http://localhost:3000"},
		{name: "foreign origin", method: "GET", origin: "http://evil.example", wantStatus: http.StatusForbidden},
		{name: "no origin header", method: "GET", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, tt.method, "/api/projects", "", tt.origin)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHeader, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cfg.Origins)
	assert.False(t, cfg.Credentials)
	assert.Contains(t, cfg.Methods, "PUT")
	assert.Equal(t, 12*time.Hour, cfg.PreflightTTL)
	assert.Contains(t, cfg.Expose, "X-Trace-ID")

	cfg = DefaultCORSConfig("https://app.example")
	assert.Equal(t, []string{"https://app.example"}, cfg.Origins)
	assert.True(t, cfg.Credentials)
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	cfg := DefaultRateLimitConfig()
	cfg.RequestsPerSecond = 2
	cfg.Burst = 2
	router.Use(RateLimit(cfg))
	router.GET("/api/projects", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	// First 2 requests should succeed (burst capacity)
	for i := 0; i < 2; i++ {
		w := serve(router, "GET", "/api/projects", "192.168.1.1:1234", "")
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := serve(router, "GET", "/api/projects", "192.168.1.1:1234", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Different client and exempt paths are unaffected
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/api/projects", "192.168.1.2:1234", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/health", "192.168.1.1:1234", "").Code)
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}
	set := newLimiterSet(cfg)
	clock := time.Unix(1000, 0)
	set.now = func() time.Time { return clock }

	assert.True(t, set.allow("a"))
	assert.False(t, set.allow("a"))
	assert.True(t, set.allow("b"))
	assert.Equal(t, 2, set.size())

	clock = clock.Add(2 * time.Minute)
	assert.True(t, set.allow("c"))
	assert.Equal(t, 1, set.size())
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/test", "10.0.0.1:1", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, "GET", "/test", "10.0.0.2:1", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "GET", "/test", "10.0.0.3:1", "").Code)
}

func TestLoggerAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	router := setupTestRouter()
	router.Use(Logger(logger), Recovery(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/ok", "", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, "GET", "/missing", "", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(router, "GET", "/panic", "", "").Code)

	assert.Equal(t, 1, logs.FilterMessage("Request served").Len())
	assert.Equal(t, 1, logs.FilterMessage("Request rejected").Len())
	assert.Equal(t, 1, logs.FilterMessage("Handler panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("Request failed").Len())
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
