package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httpapi "github.com/GriffinCanCode/AgentOS/preview/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/preview/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/preview/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/deploy"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/project"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/preview/internal/providers/cdn"
	"github.com/GriffinCanCode/AgentOS/preview/internal/sandbox"
)

// Server wraps the HTTP server and its dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	handler  http.Handler
	http     *http.Server
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	hub      *ws.Hub
	store    project.Store
	watcher  *project.Watcher
	pool     *sandbox.Pool
	previews *preview.Service
	prober   *cdn.Prober

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New wires every component from cfg. Background work starts with Start.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}
	logger.Info("Initializing preview server",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("artifacts", cfg.Artifacts.Backend),
		zap.Bool("headless", cfg.Sandbox.Headless))

	s := &Server{config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.closeResources()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = monitoring.NewMetrics(reg)
	s.tracer = tracing.New("preview", logger.Logger)

	store, err := s.openStore()
	if err != nil {
		return nil, err
	}
	s.store = store

	artifacts, err := openArtifacts(cfg.Artifacts)
	if err != nil {
		return nil, err
	}

	cdnConfig := CDN(cfg.CDN)
	builder := bundle.NewBuilder(bundle.Options{CDN: cdnConfig})

	var host *sandbox.Host
	if cfg.Sandbox.Headless {
		host, err = s.openSandbox(cdnConfig)
		if err != nil {
			return nil, err
		}
	}

	s.previews, err = preview.NewService(store, builder, preview.Options{
		CacheSize: cfg.Cache.Documents,
		Host:      host,
		Metrics:   s.metrics,
		Logger:    logger.Component("preview"),
	})
	if err != nil {
		return nil, err
	}
	deployments := deploy.NewManager(artifacts, s.metrics, logger.Component("deploy"))

	probeConfig := cdn.DefaultConfig()
	if cfg.CDN.ProbeTimeout > 0 {
		probeConfig.Timeout = cfg.CDN.ProbeTimeout
	}
	s.prober = cdn.NewProber(cdnConfig.All(), probeConfig, s.metrics, logger.Component("cdn"))

	s.hub = ws.NewHub(ws.Config{AllowedOrigins: cfg.Server.AllowedOrigins}, s.metrics, logger.Component("ws"))

	handlers := httpapi.NewHandlers(httpapi.Deps{
		Store:         store,
		Previews:      s.previews,
		Deployments:   deployments,
		Notifier:      s.hub,
		Prober:        s.prober,
		Metrics:       s.metrics,
		Logger:        logger.Component("http"),
		SignalTimeout: cfg.Sandbox.SignalTimeout,
	})
	s.hub.OnReport(handlers.Relay)

	s.router = s.newRouter(handlers, reg)
	s.handler, err = s.compress(s.router)
	if err != nil {
		return nil, err
	}
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	logger.Info("Server initialized successfully")
	return s, nil
}

func (s *Server) newRouter(handlers *httpapi.Handlers, reg *prometheus.Registry) *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Logger(s.logger.Component("access")))
	router.Use(middleware.Recovery(s.logger.Logger))
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst))
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers.Register(router)
	router.GET("/ws/projects/:id", s.hub.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	return router
}

// compress gzips responses except websocket upgrades, which need the
// raw connection
func (s *Server) compress(router http.Handler) (http.Handler, error) {
	if !s.config.Server.Gzip {
		return router, nil
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(gzhttp.DefaultMinSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}
	gz := wrap(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") || strings.Contains(r.URL.Path, "/export") {
			router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	}), nil
}

func (s *Server) openStore() (project.Store, error) {
	cfg := s.config.Storage
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return project.NewMemoryStore(), nil
	case "disk":
		store, err := project.NewDiskStore(cfg.Dir, s.logger.Component("store"))
		if err != nil {
			return nil, fmt.Errorf("failed to open project directory: %w", err)
		}
		if cfg.Watch {
			w, err := project.NewWatcher(store.Root(), project.DefaultDebounce, s.logger.Component("watcher"))
			if err != nil {
				return nil, fmt.Errorf("failed to watch project directory: %w", err)
			}
			s.watcher = w
		}
		return store, nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("STORAGE_PG_DSN is required for the postgres backend")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := project.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func openArtifacts(cfg config.ArtifactConfig) (deploy.ArtifactStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return deploy.NewMemoryArtifacts(), nil
	case "s3":
		return deploy.NewS3Store(deploy.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
}

func (s *Server) openSandbox(cdnConfig bundle.CDNConfig) (*sandbox.Host, error) {
	cfg := s.config.Sandbox
	sbConfig := sandbox.DefaultConfig()
	if cfg.SignalTimeout > 0 {
		sbConfig.SignalTimeout = cfg.SignalTimeout
	}
	if cfg.ExecTimeout > 0 {
		sbConfig.ExecTimeout = cfg.ExecTimeout
	}
	if cfg.MaxCallStack > 0 {
		sbConfig.MaxCallStackSize = cfg.MaxCallStack
	}

	pool, err := sandbox.NewPool(sbConfig, cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	s.pool = pool

	logger := s.logger.Component("sandbox")
	frames := sandbox.PoolFrames(pool, sandbox.DefaultScripts(cdnConfig), sbConfig, logger)
	return sandbox.NewHost(frames, sbConfig, logger), nil
}

// CDN maps configured origins onto the defaults; empty values keep the
// default origin
func CDN(cfg config.CDNConfig) bundle.CDNConfig {
	out := bundle.DefaultCDN()
	if cfg.React != "" {
		out.React = cfg.React
	}
	if cfg.ReactDOM != "" {
		out.ReactDOM = cfg.ReactDOM
	}
	if cfg.Icons != "" {
		out.Icons = cfg.Icons
	}
	if cfg.Tailwind != "" {
		out.Tailwind = cfg.Tailwind
	}
	if cfg.Compiler != "" {
		out.Compiler = cfg.Compiler
	}
	return out
}

// Handler returns the root handler, compression included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start launches the watcher and prober loops, then serves until the
// server is shut down
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.watcher != nil {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.watcher.Run(ctx)
		}()
		go func() {
			defer s.wg.Done()
			s.forward(ctx)
		}()
	}
	if s.config.CDN.ProbeInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.prober.Run(ctx, s.config.CDN.ProbeInterval)
		}()
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// forward turns on-disk edits into cache invalidation and live reloads
func (s *Server) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case projectID, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.previews.Invalidate(projectID)
			n := s.hub.FilesChanged(projectID)
			s.logger.Debug("Project changed on disk",
				zap.String("project_id", projectID),
				zap.Int("notified", n))
		}
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// configured timeout and releases every resource
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.hub.Close()
	s.wg.Wait()
	s.closeResources()

	_ = s.logger.Sync()
	return err
}

func (s *Server) closeResources() {
	s.once.Do(func() {
		if s.watcher != nil {
			if err := s.watcher.Close(); err != nil {
				s.logger.Warn("Failed to close watcher", zap.Error(err))
			}
		}
		if s.pool != nil {
			if err := s.pool.Close(); err != nil {
				s.logger.Warn("Failed to close sandbox pool", zap.Error(err))
			}
		}
		if closer, ok := s.store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				s.logger.Warn("Failed to close project store", zap.Error(err))
			}
		}
		if s.metrics != nil {
			s.metrics.Close()
		}
		if s.tracer != nil {
			s.tracer.Close()
		}
	})
}
