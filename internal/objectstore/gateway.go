// Package objectstore is the narrow storage surface the transform worker
// reads source objects from and writes converted objects to. Drivers map
// provider-specific failures onto the sentinel errors below.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrAccessDenied = errors.New("access denied")
	ErrWriteFailure = errors.New("write failure")
)

// Gateway fetches and stores whole objects. Put overwrites: last write wins.
type Gateway interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

/*──────── registry ───────*/

type Factory func(ctx context.Context, cfg Config) (Gateway, error)

var (
	regMu sync.RWMutex
	reg   = map[string]Factory{}
)

func Register(kind string, f Factory) {
	regMu.Lock()
	reg[kind] = f
	regMu.Unlock()
}

// Kinds lists the registered driver names.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := lo.Keys(reg)
	sort.Strings(out)
	return out
}

// New builds the driver named by cfg.Kind and wraps it with the retry policy.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	regMu.RLock()
	f, ok := reg[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("objectstore: unsupported kind %q", cfg.Kind)
	}
	g, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore %s: %w", cfg.Kind, err)
	}
	return WithRetry(g, cfg.Retry), nil
}

func init() {
	Register("memory", func(context.Context, Config) (Gateway, error) { return NewMemory(), nil })
	Register("s3", func(_ context.Context, cfg Config) (Gateway, error) { return NewS3(cfg) })
	Register("minio", func(_ context.Context, cfg Config) (Gateway, error) { return NewMinio(cfg) })
	Register("gcs", func(ctx context.Context, cfg Config) (Gateway, error) { return NewGCS(ctx, cfg) })
}
