package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/deploy"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
)

// SignalPayload is a render result reported by a deployment host page
type SignalPayload struct {
	Type     string                 `json:"type"`
	RenderID string                 `json:"render_id"`
	Signal   *types.ExecutionSignal `json:"signal"`
}

// Deploy publishes the current build of a project. With ?verify=true the
// document is first executed headlessly and the outcome becomes the
// initial deployment status.
func (h *Handlers) Deploy(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	b, err := h.previews.Build(ctx, projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	d, err := h.deployments.Deploy(ctx, deploy.Input{
		ProjectID: projectID,
		Title:     b.Project.Title,
		Entry:     b.Result.Entry,
		Digest:    b.Digest,
		Document:  b.Result.Document,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	body := gin.H{"deployment": d, "url": "/d/" + d.Slug}
	if c.Query("verify") == "true" {
		v, err := h.previews.Execute(ctx, projectID, b)
		switch {
		case errors.Is(err, preview.ErrVerifyUnavailable):
		case err != nil:
			h.logger.Warn("Deployment verification failed", zap.String("slug", d.Slug), zap.Error(err))
		case v.Outcome.Signal != nil:
			if updated, err := h.deployments.Apply(ctx, d.Slug, *v.Outcome.Signal); err == nil {
				body["deployment"] = updated
			}
			body["verification"] = v
		default:
			body["verification"] = v
		}
	}
	c.JSON(http.StatusCreated, body)
}

// ListDeployments lists the deployments of a project
func (h *Handlers) ListDeployments(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	list := h.deployments.List(projectID)
	c.JSON(http.StatusOK, gin.H{"deployments": list, "count": len(list)})
}

// GetDeployment returns deployment metadata
func (h *Handlers) GetDeployment(c *gin.Context) {
	d, err := h.deployments.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DeploymentSignal folds a browser-reported render result into the
// deployment status
func (h *Handlers) DeploymentSignal(c *gin.Context) {
	slug := c.Param("slug")
	var req SignalPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.Type == "timeout" {
		if _, err := h.deployments.Get(c.Request.Context(), slug); err != nil {
			h.fail(c, err)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordTimeout()
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
		return
	}

	if req.Signal == nil || (req.Signal.Kind != types.SignalSuccess && req.Signal.Kind != types.SignalError) {
		badRequest(c, errors.New("signal must have kind success or error"))
		return
	}
	d, err := h.deployments.Apply(c.Request.Context(), slug, *req.Signal)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSignal(string(req.Signal.Kind), "browser", 0)
	}
	c.JSON(http.StatusOK, d)
}

// DeploymentPage serves the host page of a deployment
func (h *Handlers) DeploymentPage(c *gin.Context) {
	slug := c.Param("slug")
	d, err := h.deployments.Get(c.Request.Context(), slug)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := preview.HostPage(preview.PageConfig{
		Title:         d.Title,
		DocumentURL:   "/d/" + d.Slug + "/document",
		SignalURL:     "/api/deployments/" + d.Slug + "/signal",
		SignalTimeout: h.signalTimeout,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(page))
}

// DeploymentDocument serves the published document
func (h *Handlers) DeploymentDocument(c *gin.Context) {
	doc, err := h.deployments.Document(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, htmlContentType, []byte(doc))
}
