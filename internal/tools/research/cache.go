package research

import (
	"sync"
	"time"
)

// CacheEntry holds a cached page summary.
type CacheEntry struct {
	Key       string
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Source    string // "http" or "browser"
}

// CacheStats reports cache contents.
type CacheStats struct {
	Entries int
	Valid   int
	Bytes   int
	MaxSize int
	TTL     time.Duration
}

// SummaryCache is an in-memory TTL cache of summaries keyed by URL.
type SummaryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewSummaryCache creates a cache with the given size limit and TTL.
// A non-positive TTL disables caching.
func NewSummaryCache(maxSize int, ttl time.Duration) *SummaryCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &SummaryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a live entry by key.
func (c *SummaryCache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

// Set stores a value in the cache.
func (c *SummaryCache) Set(key, value, source string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	now := c.now()
	c.entries[key] = &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Source:    source,
	}
}

// Clear removes all entries.
func (c *SummaryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Stats returns a snapshot of the cache.
func (c *SummaryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := CacheStats{Entries: len(c.entries), MaxSize: c.maxSize, TTL: c.ttl}
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.ExpiresAt) {
			s.Valid++
			s.Bytes += len(e.Value)
		}
	}
	return s
}

// evictLocked drops expired entries, or the oldest one if none expired.
func (c *SummaryCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || entry.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CreatedAt
		}
	}
	if len(c.entries) >= c.maxSize && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
