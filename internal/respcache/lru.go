package respcache

import (
	"sync"
	"time"
)

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	Expirations    int64   `json:"expirations"`
	Size           int     `json:"size"`
	MaxSize        int     `json:"max_size"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	HitRate        float64 `json:"hit_rate"`
}

// updateHitRate updates the hit rate calculation
func (s *CacheStats) updateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// add accumulates another shard's stats
func (s *CacheStats) add(o CacheStats) {
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Evictions += o.Evictions
	s.Expirations += o.Expirations
	s.Size += o.Size
	s.MaxSize += o.MaxSize
	s.TotalSizeBytes += o.TotalSizeBytes
}

// lruEntry represents a single cache entry in the LRU list
type lruEntry struct {
	key        string
	value      *CacheEntry
	sizeBytes  int64
	prev, next *lruEntry
}

// LRUCache is a thread-safe LRU cache with per-entry expiry. The Store
// shards keys across several of these.
type LRUCache struct {
	maxSize    int
	size       int
	cache      map[string]*lruEntry
	head, tail *lruEntry
	mu         sync.Mutex
	stats      CacheStats
	now        func() time.Time
}

// NewLRUCache creates a new LRU cache with the given maximum size
func NewLRUCache(maxSize int, now func() time.Time) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if now == nil {
		now = time.Now
	}
	return &LRUCache{
		maxSize: maxSize,
		cache:   make(map[string]*lruEntry),
		stats:   CacheStats{MaxSize: maxSize},
		now:     now,
	}
}

// Get retrieves a live entry. The returned entry is a copy.
func (c *LRUCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		c.stats.Misses++
		c.stats.updateHitRate()
		return CacheEntry{}, false
	}

	if entry.value.IsExpired(c.now()) {
		c.removeEntry(entry)
		c.stats.Expirations++
		c.stats.Misses++
		c.stats.updateHitRate()
		return CacheEntry{}, false
	}

	c.moveToFront(entry)
	entry.value.RecordAccess()

	c.stats.Hits++
	c.stats.updateHitRate()
	return *entry.value, true
}

// Put stores a value in the cache
func (c *LRUCache) Put(value CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := value
	size := v.SizeBytes()

	if entry, exists := c.cache[v.Key]; exists {
		c.stats.TotalSizeBytes += size - entry.sizeBytes
		entry.value = &v
		entry.sizeBytes = size
		c.moveToFront(entry)
		return
	}

	entry := &lruEntry{
		key:       v.Key,
		value:     &v,
		sizeBytes: size,
	}

	c.cache[v.Key] = entry
	c.addToFront(entry)
	c.size++
	c.stats.Size = c.size
	c.stats.TotalSizeBytes += size

	for c.size > c.maxSize {
		c.evictLRU()
	}
}

// Delete removes a value from the cache
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.cache[key]; exists {
		c.removeEntry(entry)
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*lruEntry)
	c.head = nil
	c.tail = nil
	c.size = 0
	c.stats.Size = 0
	c.stats.TotalSizeBytes = 0
}

// Size returns the current number of entries in the cache
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a copy of the cache statistics
func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Entries returns copies of all live entries, most recently used first
func (c *LRUCache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]CacheEntry, 0, c.size)
	for e := c.head; e != nil; e = e.next {
		if !e.value.IsExpired(now) {
			out = append(out, *e.value)
		}
	}
	return out
}

// CleanupExpired removes all expired entries from the cache
func (c *LRUCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expired []*lruEntry
	for _, entry := range c.cache {
		if entry.value.IsExpired(now) {
			expired = append(expired, entry)
		}
	}

	for _, entry := range expired {
		c.removeEntry(entry)
		c.stats.Expirations++
	}

	return len(expired)
}

// moveToFront moves an entry to the front of the LRU list
func (c *LRUCache) moveToFront(entry *lruEntry) {
	if entry == c.head {
		return
	}
	c.removeEntryList(entry)
	c.addToFront(entry)
}

// addToFront adds an entry to the front of the LRU list
func (c *LRUCache) addToFront(entry *lruEntry) {
	entry.prev = nil
	entry.next = c.head

	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry

	if c.tail == nil {
		c.tail = entry
	}
}

// removeEntry removes an entry from the cache and LRU list
func (c *LRUCache) removeEntry(entry *lruEntry) {
	delete(c.cache, entry.key)

	c.stats.TotalSizeBytes -= entry.sizeBytes
	c.size--
	c.stats.Size = c.size

	c.removeEntryList(entry)
}

// removeEntryList removes an entry from the LRU list only
func (c *LRUCache) removeEntryList(entry *lruEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
	entry.prev, entry.next = nil, nil
}

// evictLRU evicts the least recently used entry
func (c *LRUCache) evictLRU() {
	if c.tail == nil {
		return
	}
	c.removeEntry(c.tail)
	c.stats.Evictions++
}
