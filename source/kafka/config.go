package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CSVFLOW_KAFKA__"

type CheckpointCfg struct {
	CommitInt time.Duration `koanf:"commit_interval"` // flush cadence
}

// ReconnectCfg bounds the backoff between failed consumer group sessions.
type ReconnectCfg struct {
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
	// MaxElapsed 0 retries until the context ends.
	MaxElapsed time.Duration `koanf:"max_elapsed"`
}

// Config describes the upload-notification consumer.
type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topics    []string `koanf:"topics"`
	GroupID   string   `koanf:"group_id"`
	ClientID  string   `koanf:"client_id"`
	StartFrom string   `koanf:"start_from"` // oldest|newest
	Rebalance string   `koanf:"rebalance"`  // range|roundrobin|sticky
	Version   string   `koanf:"version"`

	TLSEn    bool   `koanf:"tls_enabled"`
	SASLUser string `koanf:"sasl_user"`
	SASLPass string `koanf:"sasl_pass"`

	Checkpoint CheckpointCfg `koanf:"checkpoint"`
	Reconnect  ReconnectCfg  `koanf:"reconnect"`
}

/*──────── loader ───────*/

// LoadConfig reads the YAML file when it exists, then lets CSVFLOW_KAFKA__*
// variables override it (`__` nests, so CHECKPOINT__COMMIT_INTERVAL sets
// checkpoint.commit_interval).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("kafka config %s: %w", path, err)
		}
	}
	if sv := k.String("schema_version"); sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("kafka env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("kafka config: %w", err)
	}
	cfg.withDefaults()
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func (c *Config) withDefaults() {
	if c.Checkpoint.CommitInt == 0 {
		c.Checkpoint.CommitInt = 5 * time.Second
	}
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
	if c.Rebalance == "" {
		c.Rebalance = "range"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.GroupID == "" {
		c.GroupID = "csvflow"
	}
	if c.ClientID == "" {
		c.ClientID = "csvflow-trigger"
	}
	if c.Reconnect.InitialInterval == 0 {
		c.Reconnect.InitialInterval = 500 * time.Millisecond
	}
	if c.Reconnect.MaxInterval == 0 {
		c.Reconnect.MaxInterval = 30 * time.Second
	}
}

// Validate reports settings the consumer group cannot start with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("brokers: at least one required"))
	}
	if len(c.Topics) == 0 {
		errs = append(errs, errors.New("topics: at least one required"))
	}
	switch c.StartFrom {
	case "oldest", "newest":
	default:
		errs = append(errs, fmt.Errorf("start_from: %q is not oldest|newest", c.StartFrom))
	}
	if _, ok := rebalancers[c.Rebalance]; !ok {
		errs = append(errs, fmt.Errorf("rebalance: unknown strategy %q", c.Rebalance))
	}
	return errors.Join(errs...)
}
