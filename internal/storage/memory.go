package storage

import (
	"context"
	"sync"
)

var _ Backend = (*Memory)(nil)
var _ Batcher = (*Memory)(nil)

// Memory is an in-process backend. Nothing survives the process; it backs
// tests and the "memory" backend kind.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.SetMany(ctx, map[string]string{key: value})
}

func (m *Memory) SetMany(_ context.Context, values map[string]string) error {
	for k := range values {
		if err := validateKey(k); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
