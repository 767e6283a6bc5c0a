// Package httpserver runs an http.Server bound to a context and exposes
// liveness and readiness handlers.
//
// Run returns when the context is cancelled and in-flight requests finished
// or the shutdown timeout elapsed. It installs no signal handlers:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, router, httpserver.WithLogger(log))
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(func() error { return srv.Run(ctx) })
//	g.Go(worker.Run(ctx))
//	return g.Wait()
package httpserver
