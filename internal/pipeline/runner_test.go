package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"csvflow/internal/columnar"
	"csvflow/internal/objectstore"
	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
	"csvflow/source/kafka"
)

type captureSink struct {
	mu     sync.Mutex
	pushed []orchestration.Run
	err    error
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(run orchestration.Run) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, run)
	return c.err
}
func (c *captureSink) Close() error { return nil }

// fakeSource replays its messages once, then blocks until cancelled.
type fakeSource struct {
	msgs    []kafka.Message
	handled []error
	closed  bool
}

func (f *fakeSource) Configure(kafka.Config) error { return nil }
func (f *fakeSource) Run(ctx context.Context, emit kafka.EmitFunc) error {
	for _, m := range f.msgs {
		f.handled = append(f.handled, emit(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}
func (f *fakeSource) Close() error { f.closed = true; return nil }

func newTestRunner(t *testing.T, store objectstore.Gateway) (*Runner, *captureSink) {
	t.Helper()
	r := NewRunner()
	cs := &captureSink{}
	r.AddSink(cs)
	w := transform.NewWorker(store, columnar.NewEncoder(columnar.Options{}), transform.Options{})
	r.machine = orchestration.NewMachine(w, orchestration.Options{Timeout: 5 * time.Second, Observers: []orchestration.Observer{r}})
	return r, cs
}

func TestRunner_TriggerToParquet(t *testing.T) {
	store := objectstore.NewMemory()
	if err := store.Put(context.Background(), "raw-data-bucket", "sales/jan.csv", []byte("quantity,unit_price\n3,9.5\n2,10.0\n"), "text/csv"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r, cs := newTestRunner(t, store)
	src := &fakeSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"Records":[{"s3":{"bucket":{"name":"raw-data-bucket"},"object":{"key":"sales/jan.csv"}}}]}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"entries":[]}`)},
	}}
	r.SetSource(src)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}

	for i, err := range src.handled {
		if err != nil {
			t.Fatalf("message %d: handler error %v", i, err)
		}
	}
	obj, ok := store.Object("processed-data-bucket", "sales/jan.parquet")
	if !ok {
		t.Fatalf("parquet object not written; keys=%v", store.Keys("processed-data-bucket"))
	}
	if obj.ContentType != "application/parquet" || string(obj.Data[:4]) != "PAR1" {
		t.Fatalf("unexpected object: type=%s", obj.ContentType)
	}

	if len(cs.pushed) != 2 {
		t.Fatalf("want 2 runs pushed (malformed trigger skipped), got %d", len(cs.pushed))
	}
	if cs.pushed[0].State != orchestration.Succeeded || cs.pushed[0].Output.StatusCode != 200 {
		t.Fatalf("first run: %+v", cs.pushed[0])
	}
	if cs.pushed[1].Output.StatusCode != 400 {
		t.Fatalf("empty trigger should be rejected with 400, got %+v", cs.pushed[1].Output)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !src.closed {
		t.Fatal("source not closed")
	}
}

func TestRunner_FailedRunStillReachesSinks(t *testing.T) {
	r, cs := newTestRunner(t, objectstore.NewMemory())
	cs.err = errors.New("sink offline")

	err := r.Handle(context.Background(), kafka.Message{Value: []byte(`{"entries":[{"bucket":"raw","key":"missing.csv"}]}`)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(cs.pushed) != 1 || cs.pushed[0].State != orchestration.Failed || cs.pushed[0].ErrorName() != "FetchError" {
		t.Fatalf("unexpected pushed runs: %+v", cs.pushed)
	}
}

func TestRunner_NoSource(t *testing.T) {
	if err := NewRunner().Run(context.Background()); err == nil {
		t.Fatal("expected error without a source")
	}
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	body := `schema_version: v1
orchestration:
  history: { kind: pebble, dir: history }
sinks: [stdout]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Compile(context.Background(), path)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if r.HasSource() || r.Machine() == nil || r.History() == nil || r.Metrics() == nil || len(r.sinks) != 1 {
		t.Fatalf("runner not wired: %+v", r)
	}
	run := r.Machine().Execute(context.Background(), transform.Event{})
	got, err := r.History().Get(context.Background(), run.ID)
	if err != nil || got.State != orchestration.Succeeded {
		t.Fatalf("run not recorded: %+v %v", got, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := os.WriteFile(path, []byte("source: { kind: sqs }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Compile(context.Background(), path); err == nil {
		t.Fatal("expected unsupported source error")
	}
}
