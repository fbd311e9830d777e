package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/doeshing/nixsay/internal/domain"
)

// memoryTier is a bounded LRU of cache entries. groupcache's lru is not safe for
// concurrent use, so every access goes through mu. index mirrors the LRU contents for
// pattern scans that must not disturb recency.
type memoryTier struct {
	mu    sync.Mutex
	lru   *lru.Cache
	index map[string]domain.CacheEntry
}

func newMemoryTier(maxEntries int) *memoryTier {
	m := &memoryTier{
		lru:   lru.New(maxEntries),
		index: map[string]domain.CacheEntry{},
	}
	m.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		delete(m.index, key.(string))
	}
	return m
}

func (m *memoryTier) get(key string) (domain.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.lru.Get(key)
	if !ok {
		return domain.CacheEntry{}, false
	}
	return value.(domain.CacheEntry), true
}

func (m *memoryTier) put(entry domain.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(entry.Key, entry)
	m.index[entry.Key] = entry
}

func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

// removeMatching drops entries selected by p and returns their keys.
func (m *memoryTier) removeMatching(p domain.Pattern) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for key, entry := range m.index {
		if entry.Matches(p) {
			removed = append(removed, key)
		}
	}
	for _, key := range removed {
		m.lru.Remove(key)
	}
	return removed
}

func (m *memoryTier) entries() []domain.CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CacheEntry, 0, len(m.index))
	for _, entry := range m.index {
		out = append(out, entry)
	}
	return out
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Clear()
	m.index = map[string]domain.CacheEntry{}
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
