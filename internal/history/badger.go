package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"csvflow/internal/orchestration"
)

// Badger stores runs in a local BadgerDB directory.
type Badger struct {
	db *badger.DB
}

func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Save(_ context.Context, r orchestration.Run) error {
	val, err := encodeRun(r)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(r.ID), val)
	})
}

func (b *Badger) Get(_ context.Context, id string) (orchestration.Run, error) {
	var r orchestration.Run
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		r, err = decodeRun(v)
		return err
	})
	return r, err
}

func (b *Badger) List(context.Context) ([]orchestration.Run, error) {
	var runs []orchestration.Run
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRun(v)
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByStart(runs)
	return runs, nil
}

func (b *Badger) Close() error { return b.db.Close() }
