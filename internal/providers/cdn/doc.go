/*
Package cdn probes the third-party script origins that assembled preview
documents load.

A document is only as good as its dependencies: when the UI runtime or the
in-browser compiler cannot be fetched, every preview fails with a
dependency-load error. The prober checks each origin with a HEAD request
(falling back to a one-byte ranged GET), through a retrying transport, a
rate limiter and one circuit breaker per dependency.

# Usage

	prober := cdn.NewProber(builder.CDN().All(), cdn.DefaultConfig(), metrics, logger)
	go prober.Run(ctx, 5*time.Minute)

	report, ok := prober.Last()
*/
package cdn
