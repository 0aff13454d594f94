package attributes

import (
	"sync"
)

// MemorySlot is an in-process Slot.
type MemorySlot struct {
	mu    sync.Mutex
	items map[string]string
	// Err, when set, fails every operation.
	Err error
}

// NewMemorySlot returns an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{items: make(map[string]string)}
}

func (m *MemorySlot) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemorySlot) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.items[key] = value
	return nil
}
