package store

import (
	"context"
	"fmt"
	"sync"
)

var _ Store = &Memory{}

// Memory is a Store that holds records in memory.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Load(ctx context.Context, contract string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[contract]
	if !ok {
		return Record{}, fmt.Errorf("loading %s: %w", contract, ErrNotFound)
	}
	return r, nil
}

func (m *Memory) Save(ctx context.Context, contract string, r Record) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("saving %s: %w", contract, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[contract]; ok {
		if err := checkTransition(prev, r); err != nil {
			return fmt.Errorf("saving %s: %w", contract, err)
		}
	}
	m.records[contract] = r
	return nil
}
