package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/deploy"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/project"
	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/providers/cdn"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Notifier pushes live-reload notifications
type Notifier interface {
	FilesChanged(projectID string) int
}

// Prober reports third-party dependency reachability
type Prober interface {
	Probe(ctx context.Context) cdn.Report
	Last() (cdn.Report, bool)
}

// Deps are the collaborators of the handlers. Notifier, Prober and
// Metrics are optional.
type Deps struct {
	Store         project.Store
	Previews      *preview.Service
	Deployments   *deploy.Manager
	Notifier      Notifier
	Prober        Prober
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
	SignalTimeout time.Duration
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store         project.Store
	previews      *preview.Service
	deployments   *deploy.Manager
	notifier      Notifier
	prober        Prober
	metrics       *monitoring.Metrics
	logger        *zap.Logger
	signalTimeout time.Duration
	started       time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handlers{
		store:         d.Store,
		previews:      d.Previews,
		deployments:   d.Deployments,
		notifier:      d.Notifier,
		prober:        d.Prober,
		metrics:       d.Metrics,
		logger:        d.Logger,
		signalTimeout: d.SignalTimeout,
		started:       time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/health/dependencies", h.Dependencies)
	r.GET("/metrics/json", h.MetricsJSON)

	api := r.Group("/api")
	api.GET("/projects", h.ListProjects)
	api.GET("/projects/:id", h.GetProject)
	api.PUT("/projects/:id", h.PutProject)
	api.DELETE("/projects/:id", h.DeleteProject)
	api.GET("/projects/:id/export", h.ExportProject)
	api.POST("/projects/:id/import", h.ImportProject)
	api.GET("/projects/:id/document", h.Document)
	api.GET("/projects/:id/build", h.BuildReport)
	api.POST("/projects/:id/verify", h.Verify)
	api.POST("/projects/:id/deploy", h.Deploy)
	api.GET("/projects/:id/deployments", h.ListDeployments)
	api.GET("/deployments/:slug", h.GetDeployment)
	api.POST("/deployments/:slug/signal", h.DeploymentSignal)

	r.GET("/preview/:id", h.PreviewPage)
	r.GET("/d/:slug", h.DeploymentPage)
	r.GET("/d/:slug/document", h.DeploymentDocument)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "preview",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":           "healthy",
		"version":          Version,
		"uptime_seconds":   int64(time.Since(h.started).Seconds()),
		"cached_documents": h.previews.Cached(),
	}
	if h.prober != nil {
		if report, ok := h.prober.Last(); ok {
			body["dependencies_healthy"] = report.Healthy
		}
	}
	c.JSON(http.StatusOK, body)
}

// Dependencies reports CDN reachability. ?refresh=true probes now,
// otherwise the last periodic report is returned.
func (h *Handlers) Dependencies(c *gin.Context) {
	if h.prober == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dependency probe is not configured"})
		return
	}
	report, ok := h.prober.Last()
	if !ok || c.Query("refresh") == "true" {
		report = h.prober.Probe(c.Request.Context())
	}
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// MetricsJSON returns the metrics snapshot
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics are disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// Relay records a render result reported over the websocket
func (h *Handlers) Relay(r ws.Report) {
	if h.metrics == nil {
		return
	}
	if r.Signal == nil {
		h.metrics.RecordTimeout()
		return
	}
	h.metrics.RecordSignal(string(r.Signal.Kind), "browser", 0)
}
