// Package testutil provides fakes for the external services the client talks to.
package testutil

import (
	"context"
	"sync"
)

// MemoryKV is an in-memory key/value store with write tracking.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string

	// Writes records every Set key in order.
	Writes []string

	// Error injection for testing
	GetErr    error
	SetErr    map[string]error
	DeleteErr error
}

// NewMemoryKV creates an empty store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]string),
		SetErr: make(map[string]error),
	}
}

// Get implements session.KV.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements session.KV.
func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.SetErr[key]; err != nil {
		return err
	}
	m.values[key] = value
	m.Writes = append(m.Writes, key)
	return nil
}

// Delete implements session.KV.
func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.values, key)
	return nil
}

// Has reports whether key is present.
func (m *MemoryKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
