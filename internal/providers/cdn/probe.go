package cdn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/resilience"
)

// Config tunes the prober's HTTP behavior
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit caps outgoing probes per second; zero is unlimited
	RateLimit float64
	UserAgent string
}

// DefaultConfig returns production probe settings
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		Retries:      2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		RateLimit:    10,
		UserAgent:    "AgentOS-Preview/1.0",
	}
}

// Status is the reachability of one dependency
type Status struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Up         bool      `json:"up"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	Breaker    string    `json:"breaker"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Report is the result of probing every dependency
type Report struct {
	Healthy      bool      `json:"healthy"`
	Dependencies []Status  `json:"dependencies"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Prober checks that the third-party scripts an assembled document loads
// are reachable
type Prober struct {
	deps     []bundle.Dependency
	client   *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu   sync.RWMutex
	last *Report
}

// NewProber creates a prober for deps. metrics may be nil.
func NewProber(deps []bundle.Dependency, config Config, metrics *monitoring.Metrics, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.Retries
	retryClient.RetryWaitMin = config.RetryWaitMin
	retryClient.RetryWaitMax = config.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Sugar()}
	retryClient.ErrorHandler = keepLastResponse

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent).
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Dependency breaker changed state",
				zap.String("dependency", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Prober{
		deps:     deps,
		client:   client,
		limiter:  limiter,
		breakers: breakers,
		metrics:  metrics,
		logger:   logger,
	}
}

// Probe checks every dependency concurrently
func (p *Prober) Probe(ctx context.Context) Report {
	statuses := make([]Status, len(p.deps))

	var wg sync.WaitGroup
	for i, dep := range p.deps {
		wg.Add(1)
		go func(i int, dep bundle.Dependency) {
			defer wg.Done()
			statuses[i] = p.check(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	report := Report{Healthy: true, Dependencies: statuses, CheckedAt: time.Now()}
	for _, s := range statuses {
		if !s.Up {
			report.Healthy = false
		}
		if p.metrics != nil {
			p.metrics.SetDependencyUp(s.Name, s.Up)
		}
	}

	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()
	return report
}

// Last returns the most recent report
func (p *Prober) Last() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Run probes immediately and then every interval until ctx is done
func (p *Prober) Run(ctx context.Context, interval time.Duration) {
	report := p.Probe(ctx)
	p.logReport(report)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logReport(p.Probe(ctx))
		}
	}
}

func (p *Prober) check(ctx context.Context, dep bundle.Dependency) Status {
	breaker := p.breakers.Get(dep.Name)
	status := Status{Name: dep.Name, URL: dep.URL, CheckedAt: time.Now()}

	start := time.Now()
	resp, err := resilience.Execute(breaker, func() (*resty.Response, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit error: %w", err)
		}
		resp, err := p.fetch(ctx, dep.URL)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			return resp, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}
		return resp, nil
	})
	status.LatencyMS = time.Since(start).Milliseconds()
	status.Breaker = breaker.State().String()

	if resp != nil {
		status.StatusCode = resp.StatusCode()
	}
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			status.Error = "dependency unavailable: circuit breaker open"
		} else {
			status.Error = err.Error()
		}
		return status
	}
	status.Up = true
	return status
}

// fetch issues a HEAD and falls back to a ranged GET for origins that
// reject HEAD
func (p *Prober) fetch(ctx context.Context, url string) (*resty.Response, error) {
	resp, err := p.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusMethodNotAllowed {
		return resp, nil
	}
	return p.client.R().
		SetContext(ctx).
		SetHeader("Range", "bytes=0-0").
		Get(url)
}

func (p *Prober) logReport(r Report) {
	for _, s := range r.Dependencies {
		if s.Up {
			continue
		}
		p.logger.Warn("Dependency unreachable",
			zap.String("dependency", s.Name),
			zap.String("url", s.URL),
			zap.Int("status", s.StatusCode),
			zap.String("error", s.Error))
	}
	if r.Healthy {
		p.logger.Debug("Dependencies reachable", zap.Int("count", len(r.Dependencies)))
	}
}

// keepLastResponse hands the final response to the caller once retries
// are exhausted so the status code is reported instead of a retry error
func keepLastResponse(resp *http.Response, err error, _ int) (*http.Response, error) {
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger
type leveledLogger struct {
	*zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, keysAndValues...)
}
