package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"csvflow/internal/engine"
	"csvflow/internal/logging"
)

func main() {
	var cfg engine.Config
	flag.StringVar(&cfg.PipelineYml, "pipeline", "configs/pipeline.yml", "pipeline definition")
	flag.IntVar(&cfg.GRPCPort, "grpc-port", 0, "control plane port (0: from pipeline)")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0, "metrics port (0: from pipeline)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
