// Package respcache short-circuits frequent fixed-fact questions. Only
// messages the Classifier accepts are ever looked up or written.
package respcache

import (
	"time"
)

// DefaultTTL bounds how stale a cached fact may become
const DefaultTTL = time.Hour

// Options configures a Cache
type Options struct {
	MaxSize    int
	Shards     int
	TTL        time.Duration
	Classifier *Classifier
	Now        func() time.Time
}

// Cache combines the classifier with the sharded LRU+TTL store
type Cache struct {
	classifier *Classifier
	store      *Store
	ttl        time.Duration
	now        func() time.Time
}

// Lookup describes a cache consultation. Hit is how callers and tests
// tell a cached answer from a fresh one.
type Lookup struct {
	Cacheable bool
	Hit       bool
	Key       string
	Intent    string
	Answer    string
}

// New creates a Cache
func New(opts Options) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		classifier: opts.Classifier,
		store:      NewStore(opts.MaxSize, opts.Shards, opts.Now),
		ttl:        opts.TTL,
		now:        opts.Now,
	}
}

// Get classifies message and, when cacheable, looks up its answer for
// tenant in the given reply language
func (c *Cache) Get(tenant, language, message string) Lookup {
	cls := c.classifier.Classify(message)
	if !cls.Cacheable {
		return Lookup{}
	}

	key := Fingerprint(tenant, language, message)
	result := Lookup{Cacheable: true, Key: key, Intent: cls.Intent}
	if entry, ok := c.store.Get(key); ok {
		result.Hit = true
		result.Answer = entry.Answer
	}
	return result
}

// Put stores answer for message under tenant and language. It refuses
// (returns false) for messages the classifier does not accept and for
// empty answers.
func (c *Cache) Put(tenant, language, message, answer string) bool {
	if answer == "" {
		return false
	}
	cls := c.classifier.Classify(message)
	if !cls.Cacheable {
		return false
	}

	now := c.now()
	c.store.Put(CacheEntry{
		Key:       Fingerprint(tenant, language, message),
		Tenant:    tenant,
		Language:  NormalizeLanguage(language),
		Question:  Normalize(message),
		Intent:    cls.Intent,
		Answer:    answer,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	return true
}

// Classify exposes the classifier decision
func (c *Cache) Classify(message string) Classification {
	return c.classifier.Classify(message)
}

// Restore inserts a previously saved entry unless it has expired
func (c *Cache) Restore(entry CacheEntry) bool {
	if entry.Key == "" || entry.IsExpired(c.now()) {
		return false
	}
	c.store.Put(entry)
	return true
}

// Entries returns copies of all live entries
func (c *Cache) Entries() []CacheEntry {
	return c.store.Entries()
}

// CleanupExpired drops expired entries and returns how many were removed
func (c *Cache) CleanupExpired() int {
	return c.store.CleanupExpired()
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.store.Clear()
}

// Size returns the number of resident entries
func (c *Cache) Size() int {
	return c.store.Size()
}

// Stats returns aggregated hit/miss statistics
func (c *Cache) Stats() CacheStats {
	return c.store.Stats()
}
