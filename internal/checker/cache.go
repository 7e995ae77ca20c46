package checker

import (
	"runtime"
	"strings"
	"sync"
	"time"
)

// caseInsensitiveFS is true on platforms whose default file system ignores case
var caseInsensitiveFS = runtime.GOOS == "windows"

// NormalizeKey returns the cache key for a resource URI. On case-insensitive
// platforms the URI is lower-cased so every spelling maps to one entry.
func NormalizeKey(uri string) string {
	return normalizeKey(uri, caseInsensitiveFS)
}

func normalizeKey(uri string, insensitive bool) string {
	if insensitive {
		return strings.ToLower(uri)
	}
	return uri
}

// Cache records when each resource was last checked by one checker.
// Absence of an entry means never checked.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]time.Time)}
}

// IsStale reports whether uri is unchecked or was last checked at least interval before now
func (c *Cache) IsStale(uri string, now time.Time, interval time.Duration) bool {
	c.mu.RLock()
	last, ok := c.entries[NormalizeKey(uri)]
	c.mu.RUnlock()

	if !ok {
		return true
	}
	return now.Sub(last) >= interval
}

// RecordChecked stores now as the last check time of uri
func (c *Cache) RecordChecked(uri string, now time.Time) {
	c.mu.Lock()
	c.entries[NormalizeKey(uri)] = now
	c.mu.Unlock()
}

// LastChecked returns the recorded check time of uri
func (c *Cache) LastChecked(uri string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[NormalizeKey(uri)]
	return t, ok
}

// EvictOlderThan drops entries recorded before cutoff and returns how many were removed
func (c *Cache) EvictOlderThan(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, checked := range c.entries {
		if checked.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of all entries keyed by normalized key
func (c *Cache) Snapshot() map[string]time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]time.Time, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore merges entries into the cache, keeping the newer time on conflict
func (c *Cache) Restore(entries map[string]time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		key := NormalizeKey(k)
		if existing, ok := c.entries[key]; ok && existing.After(v) {
			continue
		}
		c.entries[key] = v
	}
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
