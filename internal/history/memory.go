package history

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"csvflow/internal/orchestration"
)

type Memory struct {
	mu   sync.RWMutex
	runs map[string]orchestration.Run
}

func NewMemory() *Memory { return &Memory{runs: make(map[string]orchestration.Run)} }

func (m *Memory) Save(_ context.Context, r orchestration.Run) error {
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (orchestration.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return orchestration.Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) List(context.Context) ([]orchestration.Run, error) {
	m.mu.RLock()
	runs := lo.Values(m.runs)
	m.mu.RUnlock()
	sortByStart(runs)
	return runs, nil
}

func (*Memory) Close() error { return nil }
