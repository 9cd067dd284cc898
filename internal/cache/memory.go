package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	closes    []float64
	updatedAt time.Time
}

// MemoryWindow keeps close windows in process memory. Entries that go stale
// for longer than the TTL are dropped on the next access so a pair that
// stops ticking does not feed indicators computed from dead data.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	size    int
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryWindow(size int, ttl time.Duration) *MemoryWindow {
	return &MemoryWindow{
		entries: make(map[string]*memoryEntry),
		size:    size,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryWindow) Append(_ context.Context, pair string, close float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := m.entries[pair]
	if entry == nil || m.expired(entry, now) {
		entry = &memoryEntry{closes: make([]float64, 0, m.size)}
		m.entries[pair] = entry
	}

	entry.closes = append(entry.closes, close)
	if len(entry.closes) > m.size {
		entry.closes = entry.closes[len(entry.closes)-m.size:]
	}
	entry.updatedAt = now
	return nil
}

func (m *MemoryWindow) Closes(_ context.Context, pair string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entries[pair]
	if entry == nil {
		return nil, nil
	}
	if m.expired(entry, m.now()) {
		delete(m.entries, pair)
		return nil, nil
	}

	out := make([]float64, len(entry.closes))
	copy(out, entry.closes)
	return out, nil
}

func (m *MemoryWindow) expired(entry *memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(entry.updatedAt) > m.ttl
}
