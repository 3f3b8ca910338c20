package cache

import "sync"

// memoryTier is the hot tier. Entries are never evicted; InvalidateAll is the
// only way they leave.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[string]Entry)}
}

func (m *memoryTier) get(key string) (Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return e, ok
}

func (m *memoryTier) set(key string, e Entry) {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
}
