/*
Package preview serves live previews of persisted projects.

The Service loads a project snapshot from a project.Store, runs the bundle
pipeline and caches the assembled document under the snapshot digest, so
an unchanged project is never rebuilt and any edit always is. Verify runs
the document in a headless sandbox frame and reports its outcome.

HostPage renders the browser page that owns the sandbox: every render gets
a brand-new iframe, a listener installed before the document is written,
and a fallback timer. Late signals are ignored. Live previews reconnect to
the project websocket and re-render on files_changed.

# Usage

	svc, err := preview.NewService(store, builder, preview.Options{
		Host:    host,
		Metrics: metrics,
		Logger:  logger,
	})

	html, err := svc.Document(ctx, "demo")
	if pe, ok := bundle.AsPrecondition(err); ok {
		// html is the failure panel listing pe.Files
	}
*/
package preview
