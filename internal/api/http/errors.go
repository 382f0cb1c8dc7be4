package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/deploy"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/domain/project"
	"github.com/GriffinCanCode/AgentOS/preview/internal/sandbox"
)

// fail maps a domain error to a JSON error response
func (h *Handlers) fail(c *gin.Context, err error) {
	if pe, ok := bundle.AsPrecondition(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  pe.Reason.Error(),
			"reason": pe.Reason.Error(),
			"files":  pe.Files,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, deploy.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, preview.ErrVerifyUnavailable), errors.Is(err, sandbox.ErrPoolClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = 499
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
