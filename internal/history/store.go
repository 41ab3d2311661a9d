// Package history keeps run snapshots so executions can be described after
// they were started. Values are JSON encoded runs keyed by run id.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"csvflow/internal/orchestration"
)

var ErrNotFound = errors.New("history: run not found")

type Store interface {
	Save(ctx context.Context, r orchestration.Run) error
	Get(ctx context.Context, id string) (orchestration.Run, error)
	// List returns every run, oldest first.
	List(ctx context.Context) ([]orchestration.Run, error)
	Close() error
}

type Config struct {
	Kind string `yaml:"kind"` // memory|pebble|badger
	Dir  string `yaml:"dir"`
}

/*──────── registry ───────*/

type factory = func(Config) (Store, error)

var reg = map[string]factory{
	"memory": func(Config) (Store, error) { return NewMemory(), nil },
	"pebble": func(c Config) (Store, error) { return NewPebble(c.Dir) },
	"badger": func(c Config) (Store, error) { return NewBadger(c.Dir) },
}

func Kinds() []string {
	kinds := lo.Keys(reg)
	sort.Strings(kinds)
	return kinds
}

func New(cfg Config) (Store, error) {
	if cfg.Kind == "" {
		cfg.Kind = "memory"
	}
	f, ok := reg[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("history: unsupported kind %q", cfg.Kind)
	}
	if cfg.Kind != "memory" && cfg.Dir == "" {
		return nil, fmt.Errorf("history %s: dir is required", cfg.Kind)
	}
	return f(cfg)
}

/*──────── codec ───────*/

func encodeRun(r orchestration.Run) ([]byte, error) { return json.Marshal(r) }

func decodeRun(val []byte) (orchestration.Run, error) {
	var r orchestration.Run
	if err := json.Unmarshal(val, &r); err != nil {
		return orchestration.Run{}, err
	}
	return r, nil
}

func sortByStart(runs []orchestration.Run) {
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
}
