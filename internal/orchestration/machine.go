// Package orchestration wraps each worker invocation in a three-state run:
// Invoking, then Succeeded with the worker output or Failed with the cause.
// Every failure path lands in Failed, a timeout included. There is no retry.
package orchestration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"csvflow/internal/logging"
	"csvflow/internal/transform"
)

const DefaultTimeout = 5 * time.Minute

// Invoker is the worker called once per run.
type Invoker interface {
	Handle(ctx context.Context, ev transform.Event) (transform.Output, error)
}

// Recorder persists a run snapshot at start and at termination.
type Recorder interface {
	Save(ctx context.Context, r Run) error
}

// Observer is told about every run transition. Calls are synchronous.
type Observer interface {
	RunStarted(r Run)
	RunFinished(r Run)
}

type Options struct {
	Timeout   time.Duration
	Recorder  Recorder
	Observers []Observer
	Clock     func() time.Time
	NewID     func() string
}

type Machine struct {
	inv  Invoker
	opts Options
	wg   sync.WaitGroup
}

func NewMachine(inv Invoker, opts Options) *Machine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Machine{inv: inv, opts: opts}
}

// Execute runs one execution to termination and returns the terminal run.
func (m *Machine) Execute(ctx context.Context, in transform.Event) Run {
	return m.finish(ctx, m.begin(ctx, in))
}

// Start records a new run and drives it in the background. The returned
// snapshot is still Invoking; callers poll the Recorder for the outcome.
// The run is detached from ctx cancellation but keeps its values.
func (m *Machine) Start(ctx context.Context, in transform.Event) Run {
	run := m.begin(ctx, in)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.finish(context.WithoutCancel(ctx), run)
	}()
	return run
}

// Wait blocks until every run launched with Start has terminated.
func (m *Machine) Wait() { m.wg.Wait() }

/*──────── transitions ───────*/

func (m *Machine) begin(ctx context.Context, in transform.Event) Run {
	run := Run{ID: m.opts.NewID(), State: Invoking, Input: in, StartedAt: m.opts.Clock()}
	logging.L().Info("orchestration: run started", "run_id", run.ID, "entries", len(in.Entries))
	m.record(ctx, run)
	for _, o := range m.opts.Observers {
		o.RunStarted(run)
	}
	return run
}

func (m *Machine) finish(ctx context.Context, run Run) Run {
	out, err := m.invoke(ctx, run.Input)
	run.StoppedAt = m.opts.Clock()
	if err != nil {
		run.State, run.Cause = Failed, err
		logging.L().Error("orchestration: run failed",
			"run_id", run.ID, "error_name", run.ErrorName(), "err", err)
	} else {
		run.State, run.Output = Succeeded, out
		logging.L().Info("orchestration: run succeeded",
			"run_id", run.ID, "status_code", out.StatusCode)
	}
	m.record(ctx, run)
	for _, o := range m.opts.Observers {
		o.RunFinished(run)
	}
	return run
}

type result struct {
	out transform.Output
	err error
}

// invoke calls the worker exactly once under the run timeout. The deadline
// is enforced here even when the worker ignores its context.
func (m *Machine) invoke(ctx context.Context, in transform.Event) (transform.Output, error) {
	tctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- result{err: &PanicError{Value: v}}
			}
		}()
		out, err := m.inv.Handle(tctx, in)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return transform.Output{}, ErrTimeout
		}
		return r.out, r.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return transform.Output{}, ctx.Err()
		}
		return transform.Output{}, ErrTimeout
	}
}

func (m *Machine) record(ctx context.Context, run Run) {
	if m.opts.Recorder == nil {
		return
	}
	if err := m.opts.Recorder.Save(context.WithoutCancel(ctx), run); err != nil {
		logging.L().Warn("orchestration: history write failed", "run_id", run.ID, "err", err)
	}
}
