package sink

import (
	"fmt"
	"sort"

	"csvflow/internal/orchestration"
)

// Adapter receives every terminated run.
type Adapter interface {
	Configure(any) error              // driver-specific YAML ⇒ struct
	Push(run orchestration.Run) error // one terminal run
	Close() error                     // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
