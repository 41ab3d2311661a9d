package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"csvflow/internal/logging"
	"csvflow/internal/pipeline"
	"csvflow/internal/transport"
)

type Engine struct {
	cfg       Config
	transport *transport.Server
	runner    *pipeline.Runner
}

// Run serves the control plane and metrics and consumes the trigger source
// until ctx is cancelled, then shuts everything down.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		e.transport.Stop()
		return nil
	})
	g.Go(e.transport.Serve)
	g.Go(func() error { return e.runner.Metrics().Expose(ctx, e.cfg.MetricsPort) })
	if e.runner.HasSource() {
		g.Go(func() error { return e.runner.Run(ctx) })
	}

	err := g.Wait()
	if cerr := e.runner.Close(); cerr != nil {
		logging.L().Warn("engine: close", "err", cerr)
	}
	return err
}
