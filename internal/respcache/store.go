package respcache

import (
	"hash/fnv"
	"time"
)

// Store shards entries across independent LRU caches so lookups for
// unrelated questions do not contend on one lock. Recency is tracked per
// shard, so the entry evicted is the oldest in its shard, not necessarily
// the oldest overall.
type Store struct {
	shards []*LRUCache
}

// NewStore creates a store holding at most maxSize entries in total. The
// shard count is lowered to a divisor of maxSize so the per-shard
// capacities sum exactly to maxSize.
func NewStore(maxSize, shards int, now func() time.Time) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	if shards < 1 {
		shards = 1
	}
	if shards > maxSize {
		shards = maxSize
	}
	for maxSize%shards != 0 {
		shards--
	}
	perShard := maxSize / shards

	s := &Store{shards: make([]*LRUCache, shards)}
	for i := range s.shards {
		s.shards[i] = NewLRUCache(perShard, now)
	}
	return s
}

func (s *Store) shard(key string) *LRUCache {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get retrieves a live entry
func (s *Store) Get(key string) (CacheEntry, bool) {
	return s.shard(key).Get(key)
}

// Put stores an entry
func (s *Store) Put(entry CacheEntry) {
	s.shard(entry.Key).Put(entry)
}

// Delete removes an entry
func (s *Store) Delete(key string) {
	s.shard(key).Delete(key)
}

// Clear empties every shard
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.Clear()
	}
}

// Size returns the number of entries across shards
func (s *Store) Size() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Size()
	}
	return n
}

// CleanupExpired removes expired entries from every shard
func (s *Store) CleanupExpired() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.CleanupExpired()
	}
	return n
}

// Entries returns copies of all live entries
func (s *Store) Entries() []CacheEntry {
	var out []CacheEntry
	for _, sh := range s.shards {
		out = append(out, sh.Entries()...)
	}
	return out
}

// Stats aggregates shard statistics
func (s *Store) Stats() CacheStats {
	var total CacheStats
	for _, sh := range s.shards {
		total.add(sh.Stats())
	}
	total.updateHitRate()
	return total
}
