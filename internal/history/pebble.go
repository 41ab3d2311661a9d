package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"csvflow/internal/orchestration"
)

// Pebble stores runs in a local PebbleDB directory.
type Pebble struct {
	db *pebble.DB
}

func NewPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Save(_ context.Context, r orchestration.Run) error {
	val, err := encodeRun(r)
	if err != nil {
		return err
	}
	// terminal snapshots must survive a crash; the start snapshot may not
	opt := pebble.NoSync
	if r.State.Terminal() {
		opt = pebble.Sync
	}
	return p.db.Set([]byte(r.ID), val, opt)
}

func (p *Pebble) Get(_ context.Context, id string) (orchestration.Run, error) {
	v, closer, err := p.db.Get([]byte(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return orchestration.Run{}, ErrNotFound
	}
	if err != nil {
		return orchestration.Run{}, err
	}
	defer closer.Close()
	return decodeRun(v)
}

func (p *Pebble) List(context.Context) ([]orchestration.Run, error) {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var runs []orchestration.Run
	for it.First(); it.Valid(); it.Next() {
		r, err := decodeRun(it.Value())
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Key(), err)
		}
		runs = append(runs, r)
	}
	sortByStart(runs)
	return runs, nil
}

func (p *Pebble) Close() error { return p.db.Close() }
