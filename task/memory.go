package task

import (
	"log/slog"
	"sync"
)

// MemoryStore holds the serialized snapshot in memory.
type MemoryStore struct {
	mu  sync.Mutex
	raw string
	set bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (List, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return List{}, nil
	}
	return decodeSnapshot(m.raw, slog.Default()), nil
}

func (m *MemoryStore) Save(tasks List) error {
	raw, err := encodeSnapshot(tasks)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.raw, m.set = raw, true
	m.mu.Unlock()
	return nil
}

// Unavailable is the store used when no persistent storage exists.
// Load always returns an empty list and Save discards its input.
type Unavailable struct{}

func (Unavailable) Load() (List, error) { return List{}, nil }
func (Unavailable) Save(List) error     { return nil }
