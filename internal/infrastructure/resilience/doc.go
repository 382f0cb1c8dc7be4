/*
Package resilience guards calls to third-party origins with circuit
breakers.

The preview runtime is loaded from public CDNs. The dependency prober
sends every check through a breaker so an origin that keeps failing is
reported as down immediately, and only a single trial request is let
through once the cool-down has passed.

	group := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	resp, err := resilience.Execute(group.Get("react"), func() (*resty.Response, error) {
		return client.R().SetContext(ctx).Head(url)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// skipped without touching the network
	}

A breaker starts closed. ReadyToTrip decides when failures open it;
after Timeout it turns half-open and admits MaxRequests trials. A trial
failure reopens it, enough trial successes close it. Counts reset every
Interval while closed. Settings.Now replaces the clock in tests.
*/
package resilience
