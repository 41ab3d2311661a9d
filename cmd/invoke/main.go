// Command invoke executes a single orchestration run for one trigger
// document and prints the terminal run as JSON. It exits 1 when the run
// failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"csvflow/internal/event"
	"csvflow/internal/logging"
	"csvflow/internal/orchestration"
	"csvflow/internal/pipeline"
	"csvflow/internal/transport"
)

func main() {
	pipelineYml := flag.String("pipeline", "configs/pipeline.yml", "pipeline definition")
	input := flag.String("event", "-", "trigger document file, - for stdin")
	remote := flag.Int("remote", 0, "submit to a running engine's control port instead")
	flag.Parse()

	_ = godotenv.Load()
	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc, err := readInput(*input)
	if err != nil {
		log.Fatalf("read event: %v", err)
	}

	var run orchestration.Run
	if *remote > 0 {
		run, err = invokeRemote(ctx, *remote, doc)
	} else {
		run, err = invokeLocal(ctx, *pipelineYml, doc)
	}
	if err != nil {
		log.Fatalf("invoke: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(run)
	if run.State != orchestration.Succeeded {
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func invokeLocal(ctx context.Context, path string, doc []byte) (orchestration.Run, error) {
	ev, err := event.Decode(doc)
	if err != nil {
		return orchestration.Run{}, err
	}
	r, err := pipeline.Compile(ctx, path)
	if err != nil {
		return orchestration.Run{}, fmt.Errorf("pipeline: %w", err)
	}
	defer r.Close()
	return r.Machine().Execute(ctx, ev), nil
}

func invokeRemote(ctx context.Context, port int, doc []byte) (orchestration.Run, error) {
	cli, err := transport.Dial(port)
	if err != nil {
		return orchestration.Run{}, err
	}
	defer cli.Close()
	return cli.StartExecution(ctx, doc, true)
}
