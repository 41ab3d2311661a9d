package engine

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"csvflow/internal/orchestration"
	"csvflow/internal/transport"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestEngine_ServesControlPlaneUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(path, []byte("schema_version: v1\nsinks: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	grpcPort := freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := Bootstrap(ctx, Config{PipelineYml: path, GRPCPort: grpcPort, MetricsPort: freePort(t)})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cli, err := transport.Dial(grpcPort)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	run, err := cli.StartExecution(callCtx, []byte(`{"entries":[]}`), true)
	if err != nil {
		t.Fatalf("StartExecution: %v", err)
	}
	if run.State != orchestration.Succeeded || run.Output.StatusCode != 400 {
		t.Fatalf("unexpected run: %+v", run)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}
