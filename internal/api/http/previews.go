package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/preview"
)

const htmlContentType = "text/html; charset=utf-8"

// Document serves the assembled document of a project. A precondition
// failure is served as the failure panel with status 422.
func (h *Handlers) Document(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	doc, err := h.previews.Document(c.Request.Context(), projectID)
	c.Header("Cache-Control", "no-store")
	if err != nil {
		if _, ok := bundle.AsPrecondition(err); ok && doc != "" {
			c.Data(http.StatusUnprocessableEntity, htmlContentType, []byte(doc))
			return
		}
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(doc))
}

// BuildReport returns the entry, modules, graph and warnings of a build
func (h *Handlers) BuildReport(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	b, err := h.previews.Build(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": b.Project,
		"digest":  b.Digest,
		"cached":  b.Cached,
		"build":   b.Result,
		"bytes":   len(b.Result.Document),
	})
}

// Verify executes the document headlessly and returns the outcome
func (h *Handlers) Verify(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	v, err := h.previews.Verify(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// PreviewPage serves the live preview host page
func (h *Handlers) PreviewPage(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	p, err := h.store.Get(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := preview.HostPage(preview.PageConfig{
		Title:         p.Title,
		DocumentURL:   "/api/projects/" + projectID + "/document",
		SocketURL:     "/ws/projects/" + projectID,
		SignalTimeout: h.signalTimeout,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(page))
}
