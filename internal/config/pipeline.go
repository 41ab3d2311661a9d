package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"csvflow/internal/spec"
)

const (
	SupportedSchema = "v1"

	// EnvDestinationBucket overrides worker.destination_bucket.
	EnvDestinationBucket = "PROCESSED_BUCKET"

	DefaultTimeout     = 5 * time.Minute
	DefaultGRPCPort    = 7070
	DefaultMetricsPort = 9100
)

// Paths holds the driver config files referenced by a pipeline, made
// absolute against the pipeline file's directory.
type Paths struct {
	Source string
	Store  string
}

// LoadPipelineSpec parses a pipeline YAML, validates schema_version, applies
// environment overrides and defaults, and resolves driver config paths.
func LoadPipelineSpec(path string) (spec.File, Paths, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, Paths{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, Paths{}, err
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, Paths{}, fmt.Errorf("pipeline schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	dir := filepath.Dir(path)
	paths := Paths{
		Source: resolve(dir, cfg.Source.Config),
		Store:  resolve(dir, cfg.Store.Config),
	}
	if cfg.Orchestration.History.Dir != "" {
		cfg.Orchestration.History.Dir = resolve(dir, cfg.Orchestration.History.Dir)
	}
	return cfg, paths, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func applyEnv(c *spec.File) {
	if b := os.Getenv(EnvDestinationBucket); b != "" {
		c.Worker.DestinationBucket = b
	}
}

func applyDefaults(c *spec.File) {
	if c.Orchestration.Timeout <= 0 {
		c.Orchestration.Timeout = DefaultTimeout
	}
	if c.Orchestration.History.Kind == "" {
		c.Orchestration.History.Kind = "memory"
	}
	if c.Control.GRPCPort == 0 {
		c.Control.GRPCPort = DefaultGRPCPort
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
}
