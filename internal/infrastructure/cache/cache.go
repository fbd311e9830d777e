// Package cache implements the two-tier result cache: a bounded in-memory LRU in front
// of an optional persistent tier (SQLite or JSON files).
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/ports"
)

// Options configures a Cache.
type Options struct {
	MaxMemoryEntries int
	// Persistent is optional; nil keeps the cache memory-only.
	Persistent ports.CacheTier
	Logger     ports.Logger
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Cache implements ports.Cache.
//
// Every invalidation bumps a sequence number and records it per state tag. A Put carries
// the sequence observed before its read-only command ran; it is dropped when one of the
// entry's dependency tags has been invalidated since, so a read that raced a mutation
// cannot re-populate stale state. mu serializes that check with the writes it guards,
// persistent writes included.
type Cache struct {
	mem        *memoryTier
	persistent ports.CacheTier
	logger     ports.Logger
	now        func() time.Time

	mu       sync.Mutex
	seq      uint64
	tagSeq   map[string]uint64
	allSeq   uint64
	failures int
	disabled bool

	hits        atomic.Uint64
	misses      atomic.Uint64
	puts        atomic.Uint64
	dropped     atomic.Uint64
	invalidated atomic.Uint64
}

// New builds a cache.
func New(opts Options) *Cache {
	maxEntries := opts.MaxMemoryEntries
	if maxEntries <= 0 {
		maxEntries = domain.DefaultMaxMemoryEntries
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		mem:        newMemoryTier(maxEntries),
		persistent: opts.Persistent,
		logger:     opts.Logger,
		now:        now,
		tagSeq:     map[string]uint64{},
	}
}

// Get implements ports.Cache. Persistent hits are written back to memory.
func (c *Cache) Get(ctx context.Context, key string) (domain.CacheEntry, bool) {
	now := c.now()
	if entry, ok := c.mem.get(key); ok {
		if !entry.Expired(now) {
			c.hits.Add(1)
			return entry, true
		}
		c.mem.remove(key)
	}

	tier := c.activeTier()
	if tier == nil {
		c.misses.Add(1)
		return domain.CacheEntry{}, false
	}

	token := c.Token()
	entry, ok, err := tier.Get(ctx, key)
	c.recordTierResult("get", err)
	if err != nil || !ok {
		c.misses.Add(1)
		return domain.CacheEntry{}, false
	}
	if entry.Expired(now) {
		c.recordTierResult("delete", tier.Delete(ctx, key))
		c.misses.Add(1)
		return domain.CacheEntry{}, false
	}

	c.mu.Lock()
	fresh := c.freshLocked(entry, token)
	if fresh {
		c.mem.put(entry)
	}
	c.mu.Unlock()
	if !fresh {
		c.misses.Add(1)
		return domain.CacheEntry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

// Put implements ports.Cache.
func (c *Cache) Put(ctx context.Context, entry domain.CacheEntry, token uint64) bool {
	if entry.Key == "" || entry.TTL <= 0 {
		return false
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.freshLocked(entry, token) {
		c.dropped.Add(1)
		c.debug("cache put dropped", map[string]interface{}{"key": entry.Key, "token": token, "seq": c.seq})
		return false
	}
	c.mem.put(entry)
	if tier := c.activeTierLocked(); tier != nil {
		c.recordTierResultLocked("put", tier.Put(ctx, entry))
	}
	c.puts.Add(1)
	return true
}

// Invalidate implements ports.Cache and returns how many distinct entries were dropped.
func (c *Cache) Invalidate(ctx context.Context, pattern domain.Pattern) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if pattern.Tag != "" {
		c.tagSeq[pattern.Tag] = c.seq
	} else {
		c.allSeq = c.seq
	}

	removed := map[string]struct{}{}
	for _, key := range c.mem.removeMatching(pattern) {
		removed[key] = struct{}{}
	}

	if tier := c.activeTierLocked(); tier != nil {
		entries, err := tier.List(ctx)
		c.recordTierResultLocked("list", err)
		if err == nil {
			var keys []string
			for _, entry := range entries {
				if entry.Matches(pattern) {
					keys = append(keys, entry.Key)
					removed[entry.Key] = struct{}{}
				}
			}
			if len(keys) > 0 {
				c.recordTierResultLocked("delete", tier.Delete(ctx, keys...))
			}
		}
	}

	c.invalidated.Add(uint64(len(removed)))
	c.debug("cache invalidated", map[string]interface{}{"pattern": pattern.String(), "removed": len(removed), "seq": c.seq})
	return len(removed)
}

// InvalidateAll implements ports.Cache.
func (c *Cache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.allSeq = c.seq
	count := c.mem.len()
	c.mem.clear()
	if tier := c.activeTierLocked(); tier != nil {
		c.recordTierResultLocked("clear", tier.Clear(ctx))
	}
	c.invalidated.Add(uint64(count))
}

// Token implements ports.Cache.
func (c *Cache) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Stats implements ports.Cache.
func (c *Cache) Stats() domain.CacheStats {
	stats := domain.CacheStats{
		MemoryEntries: c.mem.len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Puts:          c.puts.Load(),
		DroppedPuts:   c.dropped.Load(),
		Invalidated:   c.invalidated.Load(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stats.PersistentDisabled = c.disabled
	if c.persistent != nil {
		stats.PersistentBackend = c.persistent.Name()
	}
	if tier := c.activeTierLocked(); tier != nil {
		if entries, err := tier.List(context.Background()); err == nil {
			stats.PersistentEntries = len(entries)
		}
	}
	return stats
}

// Entries implements ports.Cache: live entries from both tiers, memory first.
func (c *Cache) Entries(ctx context.Context) []domain.CacheEntry {
	now := c.now()
	seen := map[string]struct{}{}
	var out []domain.CacheEntry
	for _, entry := range c.mem.entries() {
		if entry.Expired(now) {
			continue
		}
		seen[entry.Key] = struct{}{}
		out = append(out, entry)
	}
	if tier := c.activeTier(); tier != nil {
		entries, err := tier.List(ctx)
		c.recordTierResult("list", err)
		for _, entry := range entries {
			if _, dup := seen[entry.Key]; dup || entry.Expired(now) {
				continue
			}
			out = append(out, entry)
		}
	}
	return out
}

// Close releases the persistent tier.
func (c *Cache) Close() error {
	if c.persistent == nil {
		return nil
	}
	return c.persistent.Close()
}

// freshLocked reports whether none of entry's dependencies were invalidated after token.
func (c *Cache) freshLocked(entry domain.CacheEntry, token uint64) bool {
	if c.allSeq > token {
		return false
	}
	for _, dep := range entry.Dependencies {
		if c.tagSeq[dep] > token {
			return false
		}
	}
	return true
}

func (c *Cache) activeTier() ports.CacheTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeTierLocked()
}

func (c *Cache) activeTierLocked() ports.CacheTier {
	if c.persistent == nil || c.disabled {
		return nil
	}
	return c.persistent
}

func (c *Cache) recordTierResult(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordTierResultLocked(op, err)
}

// recordTierResultLocked tracks consecutive persistent failures and disables the tier
// for the rest of the process once the limit is reached.
func (c *Cache) recordTierResultLocked(op string, err error) {
	if err == nil {
		c.failures = 0
		return
	}
	c.failures++
	if c.logger != nil {
		c.logger.Warn("persistent cache operation failed", map[string]interface{}{
			"op":       op,
			"backend":  c.persistent.Name(),
			"failures": c.failures,
			"error":    err.Error(),
		})
	}
	if c.failures >= domain.PersistentFailureLimit && !c.disabled {
		c.disabled = true
		if c.logger != nil {
			c.logger.Warn("persistent cache disabled, continuing memory-only", map[string]interface{}{
				"backend": c.persistent.Name(),
			})
		}
	}
}

func (c *Cache) debug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

var _ ports.Cache = (*Cache)(nil)
