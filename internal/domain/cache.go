package domain

import (
	"strings"
	"time"
)

// CacheEntry stores the output of a successful read-only operation.
type CacheEntry struct {
	Key          string            `json:"key"`
	Kind         OperationKind     `json:"kind"`
	Value        []byte            `json:"value"`
	CreatedAt    time.Time         `json:"created_at"`
	TTL          time.Duration     `json:"ttl"`
	Dependencies []string          `json:"dependencies"`
	Entities     map[string]string `json:"entities"`
}

// ExpiresAt returns the instant after which the entry is stale.
func (e CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.TTL <= 0 || !now.Before(e.ExpiresAt())
}

// DependsOn reports whether the entry depends on state tag.
func (e CacheEntry) DependsOn(tag string) bool {
	for _, dep := range e.Dependencies {
		if dep == tag {
			return true
		}
	}
	return false
}

// Matches reports whether the entry is selected by p.
func (e CacheEntry) Matches(p Pattern) bool {
	if p.Tag != "" && !e.DependsOn(p.Tag) {
		return false
	}
	if p.Kind != "" && e.Kind != p.Kind {
		return false
	}
	if p.Term != "" {
		term := strings.ToLower(p.Term)
		for _, value := range e.Entities {
			if strings.Contains(strings.ToLower(value), term) {
				return true
			}
		}
		return false
	}
	return true
}

// Pattern selects cache entries for invalidation. Empty fields match everything.
type Pattern struct {
	Tag  string
	Term string
	Kind OperationKind
}

func (p Pattern) String() string {
	parts := []string{}
	if p.Tag != "" {
		parts = append(parts, "tag="+p.Tag)
	}
	if p.Term != "" {
		parts = append(parts, "term="+p.Term)
	}
	if p.Kind != "" {
		parts = append(parts, "kind="+string(p.Kind))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ",")
}

// CacheStats summarizes cache activity for the current process.
type CacheStats struct {
	MemoryEntries      int
	PersistentEntries  int
	PersistentBackend  string
	PersistentDisabled bool
	Hits               uint64
	Misses             uint64
	Puts               uint64
	DroppedPuts        uint64
	Invalidated        uint64
}
