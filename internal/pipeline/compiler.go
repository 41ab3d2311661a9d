package pipeline

import (
	"context"
	"fmt"
	"io"

	"csvflow/internal/columnar"
	"csvflow/internal/config"
	"csvflow/internal/history"
	"csvflow/internal/objectstore"
	"csvflow/internal/orchestration"
	"csvflow/internal/spec"
	"csvflow/internal/telemetry"
	"csvflow/internal/transform"
	"csvflow/sink"
	sinkkafka "csvflow/sink/kafka"
	"csvflow/sink/stdout"
	"csvflow/source/kafka"
)

func Compile(ctx context.Context, path string) (*Runner, error) {
	r := NewRunner()
	if err := LoadYAML(ctx, path, r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func LoadYAML(ctx context.Context, path string, r *Runner) error {
	cfg, paths, err := config.LoadPipelineSpec(path)
	if err != nil {
		return err
	}
	r.spec = cfg

	/* 1. worker */
	sc, err := config.LoadStoreConfig(paths.Store)
	if err != nil {
		return err
	}
	gw, err := objectstore.New(ctx, sc)
	if err != nil {
		return err
	}
	if c, ok := gw.(io.Closer); ok {
		r.closers = append(r.closers, c)
	}
	r.metrics = telemetry.NewRegistry()
	enc := columnar.NewEncoder(columnar.Options{
		ParallelWriters: cfg.Encoder.ParallelWriters,
		RowGroupSize:    cfg.Encoder.RowGroupSize,
		PageSize:        cfg.Encoder.PageSize,
	})
	worker := transform.NewWorker(gw, enc, transform.Options{
		DestinationBucket: cfg.Worker.DestinationBucket,
		Observer:          r.metrics,
	})

	/* 2. orchestration */
	r.history, err = history.New(history.Config{
		Kind: cfg.Orchestration.History.Kind,
		Dir:  cfg.Orchestration.History.Dir,
	})
	if err != nil {
		return err
	}
	r.machine = orchestration.NewMachine(worker, orchestration.Options{
		Timeout:   cfg.Orchestration.Timeout,
		Recorder:  r.history,
		Observers: []orchestration.Observer{r.metrics, r},
	})

	/* 3. source (optional: control-plane or one-shot use) */
	switch cfg.Source.Kind {
	case "":
	case "kafka":
		kc, err := config.LoadKafkaConfig(paths.Source)
		if err != nil {
			return err
		}
		src, err := kafka.NewAdapter(cfg.Source.Driver)
		if err != nil {
			return err
		}
		if err = src.Configure(kc); err != nil {
			return err
		}
		r.SetSource(src)
	default:
		return fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}

	/* 4. sinks */
	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}
		if err := sDrv.Configure(sinkConfig(name, cfg)); err != nil {
			return fmt.Errorf("sink %s: %w", name, err)
		}
		r.AddSink(sDrv)
	}
	return nil
}

func sinkConfig(name string, cfg spec.File) any {
	switch name {
	case "stdout":
		c := cfg.SinkConfigs.Stdout
		return stdout.Config{PrintCounter: c.PrintCounter, PrintInput: c.PrintInput}
	case "kafka":
		c := cfg.SinkConfigs.Kafka
		return sinkkafka.Config{
			Brokers:      c.Brokers,
			Topic:        c.Topic,
			FailureTopic: c.FailureTopic,
			Acks:         c.RequiredAcks,
			Version:      c.Version,
		}
	}
	return nil
}
