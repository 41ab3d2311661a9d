package transform

import (
	"context"
	"errors"
	"time"

	"csvflow/internal/logging"
	"csvflow/internal/objectstore"
)

const (
	StatusOK         = 200
	StatusBadRequest = 400

	SuccessBody = "Processing completed successfully"
)

/*──────────────────────── event & output ───────────────────────*/

type Entry struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type Event struct {
	Entries []Entry `json:"entries"`
}

type Output struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

/*──────────────────────── collaborators ───────────────────────*/

// Encoder turns a derived table into the bytes written to the destination.
type Encoder interface {
	Encode(t *Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// Observer receives per-entry counters. Nil is allowed.
type Observer interface {
	EntrySkipped()
	EntryProcessed(bytesIn, bytesOut int)
}

type Options struct {
	// DestinationBucket overrides the raw->processed bucket rule.
	DestinationBucket string
	Clock             func() time.Time
	Observer          Observer
}

/*──────────────────────── worker ───────────────────────*/

type Worker struct {
	store objectstore.Gateway
	enc   Encoder
	opts  Options
}

func NewWorker(store objectstore.Gateway, enc Encoder, opts Options) *Worker {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Worker{store: store, enc: enc, opts: opts}
}

// Handle processes the entries of ev in order and stops at the first
// failure. Objects already written by earlier entries are left in place.
func (w *Worker) Handle(ctx context.Context, ev Event) (Output, error) {
	if len(ev.Entries) == 0 {
		logging.L().Warn("transform: rejecting event", "err", ErrEmptyEvent)
		return Output{StatusCode: StatusBadRequest, Body: ErrEmptyEvent.Error()}, nil
	}
	for _, e := range ev.Entries {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		if !Eligible(e.Key) {
			logging.L().Debug("transform: skipping non-csv entry", "bucket", e.Bucket, "key", e.Key)
			if w.opts.Observer != nil {
				w.opts.Observer.EntrySkipped()
			}
			continue
		}
		if err := w.process(ctx, e); err != nil {
			return Output{}, err
		}
	}
	return Output{StatusCode: StatusOK, Body: SuccessBody}, nil
}

func (w *Worker) process(ctx context.Context, e Entry) error {
	data, err := w.store.Get(ctx, e.Bucket, e.Key)
	if err != nil {
		return &FetchError{Bucket: e.Bucket, Key: e.Key, Err: err}
	}

	t, err := Decode(e.Key, data)
	if err != nil {
		return err
	}
	if err := Derive(t, w.opts.Clock()); err != nil {
		var te *TransformError
		if errors.As(err, &te) {
			te.Key = e.Key
		}
		return err
	}
	out, err := w.enc.Encode(t)
	if err != nil {
		return &EncodeError{Key: e.Key, Err: err}
	}

	bucket := DestinationBucket(e.Bucket, w.opts.DestinationBucket)
	key := DestinationKey(e.Key, w.enc.Extension())
	if err := w.store.Put(ctx, bucket, key, out, w.enc.ContentType()); err != nil {
		return &WriteError{Bucket: bucket, Key: key, Err: err}
	}

	logging.L().Info("transform: converted",
		"source", e.Bucket+"/"+e.Key,
		"destination", bucket+"/"+key,
		"rows", len(t.Rows),
		"bytes_in", len(data),
		"bytes_out", len(out))
	if w.opts.Observer != nil {
		w.opts.Observer.EntryProcessed(len(data), len(out))
	}
	return nil
}
