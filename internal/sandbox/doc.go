/*
Package sandbox executes assembled preview documents and mediates the
success/error signal they report.

# Overview

A render writes one document into a brand-new isolated Frame. The Host
drives a small state machine per render:

	idle -> loading-dependencies -> compiling -> executing -> succeeded | failed

Phases only move forward. The first terminal signal wins. A fallback
timer races the signal: when it fires first the host stops loading and
any signal that arrives afterwards is recorded as late and otherwise
ignored. The frame itself is never aborted by the timer.

# Frames

Frame is the isolated browsing context. In production browsers own the
frame (an iframe created by the host page) and relay signals over the
websocket hub. GojaFrame is the headless frame used for verification:

 1. The document is parsed with goquery.
 2. External scripts are resolved against a ScriptSet of local stubs
    (React, ReactDOM, lucide-react, Tailwind, Babel). Unknown URLs fail
    exactly like a CDN outage.
 3. Inline scripts run in document order inside a fresh goja runtime,
    so the document's own prelude and bootstrap drive execution.
 4. The Babel stub compiles with esbuild (TSX loader, classic JSX).
 5. window.parent.postMessage is bound to the frame's Listener.

Runtimes come from a Pool that pre-warms fresh VMs. Released runtimes
are discarded: module caches never leak from one render to the next.

# Usage Example

	host := sandbox.NewHost(sandbox.PoolFrames(pool, scripts, cfg, logger), cfg, logger)
	session, err := host.Render(ctx, document)
	if err != nil {
		return err
	}
	defer session.Close()

	outcome, err := session.Wait(ctx)
*/
package sandbox
