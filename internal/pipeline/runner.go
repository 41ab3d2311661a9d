package pipeline

import (
	"context"
	"errors"
	"io"

	"csvflow/internal/event"
	"csvflow/internal/history"
	"csvflow/internal/logging"
	"csvflow/internal/orchestration"
	"csvflow/internal/spec"
	"csvflow/internal/telemetry"
	"csvflow/sink"
	"csvflow/source/kafka"
)

// Runner turns trigger messages into orchestration runs and fans every
// terminated run out to the sinks, whichever way the run was started.
type Runner struct {
	spec    spec.File
	source  kafka.Adapter
	sinks   []sink.Adapter
	machine *orchestration.Machine
	history history.Store
	metrics *telemetry.Registry
	closers []io.Closer
}

func NewRunner() *Runner { return &Runner{} }

func (r *Runner) AddSink(s sink.Adapter)    { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

func (r *Runner) Spec() spec.File                 { return r.spec }
func (r *Runner) Machine() *orchestration.Machine { return r.machine }
func (r *Runner) History() history.Store          { return r.history }
func (r *Runner) Metrics() *telemetry.Registry    { return r.metrics }
func (r *Runner) HasSource() bool                 { return r.source != nil }

/*──────── orchestration.Observer ───────*/

func (r *Runner) RunStarted(orchestration.Run) {}

func (r *Runner) RunFinished(run orchestration.Run) {
	if err := r.dispatch(run); err != nil {
		logging.L().Error("pipeline: sink push failed", "run_id", run.ID, "err", err)
	}
}

/*──────── run routing ───────*/

func (r *Runner) dispatch(run orchestration.Run) error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Push(run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle executes one run per trigger message. Undecodable documents are
// logged and skipped so they cannot block the partition.
func (r *Runner) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := event.Decode(msg.Value)
	if err != nil {
		logging.L().Warn("pipeline: dropping undecodable trigger",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	run := r.machine.Execute(ctx, ev)
	if run.State == orchestration.Failed && ctx.Err() != nil {
		// shutting down: leave the offset unmarked so the trigger is redelivered
		return ctx.Err()
	}
	return nil
}

// Run consumes the source until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	err := r.source.Run(ctx, r.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close waits for background runs, then releases every component.
func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	if r.machine != nil {
		r.machine.Wait()
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	if r.history != nil {
		errs = append(errs, r.history.Close())
	}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
