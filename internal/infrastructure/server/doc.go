// Package server assembles the preview service: project store, build
// cache, headless sandbox, deployments, websocket hub, dependency prober
// and the gin router with its middleware stack.
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//		return err
//	}
//	go srv.Start()
//	defer srv.Shutdown(context.Background())
package server
