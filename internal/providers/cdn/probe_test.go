package cdn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
)

func testConfig() Config {
	return Config{Timeout: 2 * time.Second}
}

func gauge(t *testing.T, m *monitoring.Metrics, name string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.DependencyUp.WithLabelValues(name).Write(&out))
	return out.GetGauge().GetValue()
}

func TestProbeReportsEachDependency(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "AgentOS-Preview/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	defer metrics.Close()

	prober := NewProber([]bundle.Dependency{
		{Name: "react", URL: ok.URL + "/react.js"},
		{Name: "compiler", URL: missing.URL + "/babel.js"},
	}, testConfig(), metrics, nil)

	report := prober.Probe(context.Background())
	require.Len(t, report.Dependencies, 2)
	assert.False(t, report.Healthy)

	react := report.Dependencies[0]
	assert.Equal(t, "react", react.Name)
	assert.True(t, react.Up)
	assert.Equal(t, http.StatusOK, react.StatusCode)
	assert.Equal(t, "closed", react.Breaker)

	compiler := report.Dependencies[1]
	assert.False(t, compiler.Up)
	assert.Equal(t, http.StatusNotFound, compiler.StatusCode)
	assert.Contains(t, compiler.Error, "404")

	assert.Equal(t, 1.0, gauge(t, metrics, "react"))
	assert.Equal(t, 0.0, gauge(t, metrics, "compiler"))

	last, found := prober.Last()
	require.True(t, found)
	assert.Equal(t, report.CheckedAt, last.CheckedAt)
}

func TestProbeFallsBackToGet(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		atomic.AddInt32(&gets, 1)
		assert.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("/"))
	}))
	defer srv.Close()

	prober := NewProber([]bundle.Dependency{{Name: "tailwind", URL: srv.URL}}, testConfig(), nil, nil)
	report := prober.Probe(context.Background())

	assert.True(t, report.Healthy)
	assert.Equal(t, http.StatusPartialContent, report.Dependencies[0].StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))
}

func TestProbeRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Retries = 1
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond

	prober := NewProber([]bundle.Dependency{{Name: "react", URL: srv.URL}}, cfg, nil, nil)
	report := prober.Probe(context.Background())

	assert.True(t, report.Healthy)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProbeBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober := NewProber([]bundle.Dependency{{Name: "icons", URL: srv.URL}}, testConfig(), nil, nil)
	for i := 0; i < 3; i++ {
		status := prober.Probe(context.Background()).Dependencies[0]
		assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
	}

	status := prober.Probe(context.Background()).Dependencies[0]
	assert.False(t, status.Up)
	assert.Equal(t, "open", status.Breaker)
	assert.Contains(t, status.Error, "circuit breaker open")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	prober := NewProber([]bundle.Dependency{{Name: "react", URL: url}}, testConfig(), nil, nil)
	status := prober.Probe(context.Background()).Dependencies[0]

	assert.False(t, status.Up)
	assert.Zero(t, status.StatusCode)
	assert.NotEmpty(t, status.Error)
}

func TestRunProbesUntilCancelled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	prober := NewProber([]bundle.Dependency{{Name: "react", URL: srv.URL}}, testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		prober.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&hits) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestProbeEmpty(t *testing.T) {
	prober := NewProber(nil, testConfig(), nil, nil)
	_, found := prober.Last()
	assert.False(t, found)

	report := prober.Probe(context.Background())
	assert.True(t, report.Healthy)
	assert.Empty(t, report.Dependencies)
}
