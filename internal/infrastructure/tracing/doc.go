/*
Package tracing correlates log lines for one request or render.

Every request gets a trace id (trc_*) and a span id (spn_*). A caller can
continue its own trace by sending X-Trace-ID and X-Span-ID; both are
echoed on the response. Finished spans are buffered and written to the
log by a single collector goroutine.

	tracer := tracing.New("preview", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "verify")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
