package persistence

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryEngine is an in-memory implementation of Engine
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryEngine creates a new in-memory persistence engine
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryEngine) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok || entry.expired(m.now()) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *MemoryEngine) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{value: append([]byte(nil), value...)}
	return nil
}

func (m *MemoryEngine) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryEngine) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryEngine) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var keys []string
	for key, entry := range m.data {
		if strings.HasPrefix(key, prefix) && !entry.expired(now) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryEngine) BatchSet(items map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range items {
		m.data[key] = memoryEntry{value: append([]byte(nil), value...)}
	}
	return nil
}

func (m *MemoryEngine) BatchDelete(keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryEngine) Close() error {
	return nil
}
