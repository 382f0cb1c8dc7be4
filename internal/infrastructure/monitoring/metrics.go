package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Build metrics
	Builds        *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	BuildModules  prometheus.Histogram
	BuildWarnings prometheus.Counter
	DocumentBytes prometheus.Histogram
	CacheLookups  *prometheus.CounterVec

	// Sandbox metrics
	Signals        *prometheus.CounterVec
	SignalTimeouts prometheus.Counter
	LateSignals    prometheus.Counter
	RenderDuration prometheus.Histogram

	// Deployment metrics
	Deployments *prometheus.CounterVec

	// CDN metrics
	DependencyUp *prometheus.GaugeVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex

	stop chan struct{}
	once sync.Once
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	Builds            int64   `json:"builds"`
	BuildFailures     int64   `json:"build_failures"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	TimedOut          int64   `json:"timed_out"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector registered with reg. A nil reg uses the
// default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		stop:      make(chan struct{}),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Build metrics
		Builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_builds_total",
				Help: "Total number of pipeline runs by result",
			},
			[]string{"result"},
		),
		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_build_duration_seconds",
				Help:    "Pipeline duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		BuildModules: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_build_modules",
				Help:    "Modules registered per build",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		BuildWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_build_warnings_total",
				Help: "Total number of non-fatal build warnings",
			},
		),
		DocumentBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_document_size_bytes",
				Help:    "Assembled document size in bytes",
				Buckets: []float64{1000, 10000, 50000, 100000, 500000, 1000000, 5000000},
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_document_cache_total",
				Help: "Document cache lookups by result",
			},
			[]string{"result"},
		),

		// Sandbox metrics
		Signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_signals_total",
				Help: "Terminal execution signals by kind and source",
			},
			[]string{"kind", "source"},
		),
		SignalTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_signal_timeouts_total",
				Help: "Renders whose fallback timer fired before a signal",
			},
		),
		LateSignals: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "preview_late_signals_total",
				Help: "Signals received after the fallback timer fired",
			},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_render_duration_seconds",
				Help:    "Time from document write to terminal signal",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		// Deployment metrics
		Deployments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_deployments_total",
				Help: "Deployment status transitions",
			},
			[]string{"status"},
		),

		// CDN metrics
		DependencyUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "preview_dependency_up",
				Help: "Whether a third-party script origin was reachable at the last probe",
			},
			[]string{"name"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_ws_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		case <-m.stop:
			return
		}
	}
}

// Close stops the uptime updater
func (m *Metrics) Close() {
	m.once.Do(func() { close(m.stop) })
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordBuild records one pipeline run. result is "success",
// "precondition" or "error".
func (m *Metrics) RecordBuild(result string, duration time.Duration, modules, warnings, documentBytes int) {
	m.Builds.WithLabelValues(result).Inc()
	m.BuildDuration.Observe(duration.Seconds())
	if result == "success" {
		m.BuildModules.Observe(float64(modules))
		m.BuildWarnings.Add(float64(warnings))
		m.DocumentBytes.Observe(float64(documentBytes))
	}

	m.mu.Lock()
	m.snapshot.Builds++
	if result != "success" {
		m.snapshot.BuildFailures++
	}
	m.mu.Unlock()
}

// RecordCache records a document cache lookup
func (m *Metrics) RecordCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordSignal records a terminal signal. source is "headless" or
// "browser".
func (m *Metrics) RecordSignal(kind, source string, duration time.Duration) {
	m.Signals.WithLabelValues(kind, source).Inc()
	if duration > 0 {
		m.RenderDuration.Observe(duration.Seconds())
	}

	m.mu.Lock()
	if kind == "error" {
		m.snapshot.Failed++
	} else {
		m.snapshot.Succeeded++
	}
	m.mu.Unlock()
}

// RecordTimeout records a render whose fallback timer fired first
func (m *Metrics) RecordTimeout() {
	m.SignalTimeouts.Inc()
	m.mu.Lock()
	m.snapshot.TimedOut++
	m.mu.Unlock()
}

// RecordLateSignal records a signal that arrived after the timeout
func (m *Metrics) RecordLateSignal() {
	m.LateSignals.Inc()
}

// RecordDeployment records a deployment status transition
func (m *Metrics) RecordDeployment(status string) {
	m.Deployments.WithLabelValues(status).Inc()
}

// SetDependencyUp records a CDN probe result
func (m *Metrics) SetDependencyUp(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.DependencyUp.WithLabelValues(name).Set(v)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
