package objectstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"csvflow/internal/logging"
)

// Retrying retries transient gateway failures. Missing objects and denied
// access are permanent and returned on the first attempt.
type Retrying struct {
	next Gateway
	cfg  RetryConfig
}

// WithRetry returns g unchanged when the policy allows a single attempt.
func WithRetry(g Gateway, cfg RetryConfig) Gateway {
	if cfg.MaxAttempts <= 1 {
		return g
	}
	return &Retrying{next: g, cfg: cfg}
}

func (r *Retrying) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	err := backoff.RetryNotify(func() error {
		var err error
		data, err = r.next.Get(ctx, bucket, key)
		return classify(err)
	}, r.policy(ctx), notify("get", bucket, key))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Retrying) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return backoff.RetryNotify(func() error {
		return classify(r.next.Put(ctx, bucket, key, data, contentType))
	}, r.policy(ctx), notify("put", bucket, key))
}

// Close releases the wrapped driver when it holds a client.
func (r *Retrying) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

func notify(op, bucket, key string) backoff.Notify {
	return func(err error, wait time.Duration) {
		logging.L().Warn("objectstore: retrying", "op", op, "bucket", bucket, "key", key, "wait", wait, "err", err)
	}
}
