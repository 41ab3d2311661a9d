package engine

import (
	"context"
	"fmt"

	"csvflow/internal/logging"
	"csvflow/internal/pipeline"
	"csvflow/internal/transport"
)

type Config struct {
	PipelineYml string
	// Non-zero ports override the pipeline's control and metrics sections.
	GRPCPort    int
	MetricsPort int
}

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. pipeline runner
	runner, err := pipeline.Compile(ctx, cfg.PipelineYml)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ps := runner.Spec()
	if cfg.GRPCPort == 0 {
		cfg.GRPCPort = ps.Control.GRPCPort
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = ps.Metrics.Port
	}

	// 2. transport server
	srv, err := transport.StartServer(cfg.GRPCPort, transport.NewControl(runner.Machine(), runner.History()))
	if err != nil {
		_ = runner.Close()
		return nil, fmt.Errorf("transport: %w", err)
	}

	logging.L().Info("engine: bootstrapped",
		"pipeline", cfg.PipelineYml,
		"grpc_port", cfg.GRPCPort,
		"metrics_port", cfg.MetricsPort,
		"source", ps.Source.Kind,
		"sinks", ps.Sinks)

	return &Engine{
		cfg:       cfg,
		transport: srv,
		runner:    runner,
	}, nil
}
