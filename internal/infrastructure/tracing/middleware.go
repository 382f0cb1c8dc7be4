package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
)

// HTTPMiddleware traces every request. An inbound X-Trace-ID continues
// the caller's trace; the ids are echoed on the response.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(), id.TraceID(c.GetHeader(TraceHeader)), c.GetHeader(SpanHeader))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)
		if projectID := c.Param("id"); projectID != "" {
			span.SetTag("project_id", projectID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, span.TraceID.String())
		c.Header(SpanHeader, span.SpanID)

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.bytes", strconv.Itoa(c.Writer.Size()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
