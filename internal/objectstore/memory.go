package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
}

// Memory keeps objects in a map. It backs local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]map[string]Object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]map[string]Object)}
}

func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("memory get %s/%s: %w", bucket, key, ErrNotFound)
	}
	return append([]byte(nil), obj.Data...), nil
}

func (m *Memory) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string]Object)
		m.objects[bucket] = b
	}
	b[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

// Object returns a stored object without copying its data.
func (m *Memory) Object(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket][key]
	return obj, ok
}

func (m *Memory) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects[bucket]))
	for k := range m.objects[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
