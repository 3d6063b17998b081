package storage

import (
	"context"
	"sync"

	"github.com/rl1809/vending-ledger/internal/port"
)

type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = clone(value)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, key string, fn port.UpdateFunc) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.data[key]
	next, err := fn(clone(cur), ok)
	if err != nil {
		return nil, err
	}
	m.data[key] = clone(next)
	return next, nil
}

func (m *MemoryStore) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
