package db

import (
	"sync"

	"athena/types"
)

// MemoryBackend keeps persistent scopes in a map; nothing survives the process
type MemoryBackend struct {
	mu   sync.RWMutex
	vals map[Key]types.Value
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{vals: make(map[Key]types.Value)}
}

func (m *MemoryBackend) Load(k Key) (types.Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[k]
	return v, ok, nil
}

func (m *MemoryBackend) Save(k Key, v types.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[k] = v
	return nil
}

func (m *MemoryBackend) Delete(k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, k)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Len returns the number of stored slots
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vals)
}

// Entries returns every stored slot
func (m *MemoryBackend) Entries() map[Key]types.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Key]types.Value, len(m.vals))
	for k, v := range m.vals {
		out[k] = v
	}
	return out
}

// Replace swaps the stored slots for vals
func (m *MemoryBackend) Replace(vals map[Key]types.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals = vals
}
