// csvflow/sink/stdout/driver.go
package stdout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"csvflow/internal/orchestration"
	"csvflow/sink"
)

/* ────────── public YAML config ────────── */
type Config struct {
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
	PrintInput   bool `yaml:"print_input"`   // include the trigger entries

	Out io.Writer `yaml:"-"` // nil → os.Stdout
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config

	mu  sync.Mutex // serialises lines
	seq uint64
}

type line struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Status    int    `json:"status_code,omitempty"`
	Body      string `json:"body,omitempty"`
	ErrorName string `json:"error_name,omitempty"`
	Error     string `json:"error,omitempty"`
	Entries   any    `json:"entries,omitempty"`
	Millis    int64  `json:"duration_ms"`
}

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(run orchestration.Run) error {
	l := line{
		ID:        run.ID,
		State:     string(run.State),
		ErrorName: run.ErrorName(),
		Millis:    run.StoppedAt.Sub(run.StartedAt).Milliseconds(),
	}
	if run.State == orchestration.Succeeded {
		l.Status, l.Body = run.Output.StatusCode, run.Output.Body
	}
	if run.Cause != nil {
		l.Error = run.Cause.Error()
	}
	if d.cfg.PrintInput {
		l.Entries = run.Input.Entries
	}
	b, err := json.Marshal(l)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.PrintCounter {
		d.seq++
		_, err = fmt.Fprintf(d.cfg.Out, "[sink %06d] %s\n", d.seq, b)
	} else {
		_, err = fmt.Fprintf(d.cfg.Out, "%s\n", b)
	}
	return err
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
