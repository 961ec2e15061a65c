package profile

import (
	"sync"

	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// memoryKV implements kv using an in-memory map.
type memoryKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemory creates an in-memory profile.
//
// Useful for testing or when persistence is not wanted.
func NewMemory() Store {
	return newStore(&memoryKV{values: make(map[string][]byte)}, logger.Noop())
}

func (m *memoryKV) view(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *memoryKV) update(key string, fn updateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, remove, err := fn(m.values[key])
	if err != nil {
		return err
	}

	if remove {
		delete(m.values, key)
		return nil
	}

	m.values[key] = next
	return nil
}

func (m *memoryKV) close() error {
	return nil
}
