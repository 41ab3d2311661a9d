package orchestration

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"csvflow/internal/transform"
)

type State string

const (
	Invoking  State = "Invoking"
	Succeeded State = "Succeeded"
	Failed    State = "Failed"
)

func (s State) Terminal() bool { return s == Succeeded || s == Failed }

const (
	NameTimeout    = "States.Timeout"
	NameTaskFailed = "States.TaskFailed"
	NameRuntime    = "States.Runtime"
)

// ErrTimeout is the cause of a run whose invocation outlived its time limit.
var ErrTimeout = errors.New(NameTimeout)

// Run is one orchestration execution. Output is meaningful only when the run
// Succeeded and Cause only when it Failed.
type Run struct {
	ID        string
	State     State
	Input     transform.Event
	Output    transform.Output
	Cause     error
	StartedAt time.Time
	StoppedAt time.Time
}

// ErrorName classifies the failure cause for reporting. Empty unless Failed.
func (r Run) ErrorName() string {
	if r.State != Failed {
		return ""
	}
	return errorName(r.Cause)
}

func errorName(err error) string {
	var (
		rec *recordedError
		fe  *transform.FetchError
		de  *transform.DecodeError
		te  *transform.TransformError
		ee  *transform.EncodeError
		we  *transform.WriteError
		pe  *PanicError
	)
	switch {
	case errors.As(err, &rec):
		return rec.name
	case errors.Is(err, ErrTimeout):
		return NameTimeout
	case errors.As(err, &fe):
		return "FetchError"
	case errors.As(err, &de):
		return "DecodeError"
	case errors.As(err, &te):
		return "TransformError"
	case errors.As(err, &ee):
		return "EncodeError"
	case errors.As(err, &we):
		return "WriteError"
	case errors.As(err, &pe):
		return NameRuntime
	default:
		return NameTaskFailed
	}
}

// PanicError carries a value recovered from the worker.
type PanicError struct{ Value any }

func (e *PanicError) Error() string { return fmt.Sprintf("worker panicked: %v", e.Value) }

// recordedError stands in for a cause read back from history.
type recordedError struct{ name, msg string }

func (e *recordedError) Error() string { return e.msg }

/*──────── json ───────*/

type runJSON struct {
	ID        string            `json:"id"`
	State     State             `json:"state"`
	Input     transform.Event   `json:"input"`
	Output    *transform.Output `json:"output,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorName string            `json:"error_name,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	StoppedAt *time.Time        `json:"stopped_at,omitempty"`
}

func (r Run) MarshalJSON() ([]byte, error) {
	j := runJSON{ID: r.ID, State: r.State, Input: r.Input, StartedAt: r.StartedAt}
	switch r.State {
	case Succeeded:
		out := r.Output
		j.Output = &out
	case Failed:
		if r.Cause != nil {
			j.Error = r.Cause.Error()
		}
		j.ErrorName = r.ErrorName()
	}
	if !r.StoppedAt.IsZero() {
		at := r.StoppedAt
		j.StoppedAt = &at
	}
	return json.Marshal(j)
}

func (r *Run) UnmarshalJSON(b []byte) error {
	var j runJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*r = Run{ID: j.ID, State: j.State, Input: j.Input, StartedAt: j.StartedAt}
	if j.Output != nil {
		r.Output = *j.Output
	}
	if j.State == Failed {
		r.Cause = &recordedError{name: j.ErrorName, msg: j.Error}
	}
	if j.StoppedAt != nil {
		r.StoppedAt = *j.StoppedAt
	}
	return nil
}
