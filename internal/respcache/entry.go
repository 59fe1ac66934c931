package respcache

import (
	"time"
)

// CacheEntry is one cached answer with its metadata
type CacheEntry struct {
	Key         string    `json:"key"`      // Fingerprint (SHA256 hex)
	Tenant      string    `json:"tenant"`   // Knowledge context the answer belongs to
	Language    string    `json:"language,omitempty"`
	Question    string    `json:"question"` // Normalized question, kept for inspection
	Intent      string    `json:"intent"`   // Intent pattern that made the question cacheable
	Answer      string    `json:"answer"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccessCount int       `json:"access_count"`
}

// SizeBytes approximates the memory held by the entry
func (e *CacheEntry) SizeBytes() int64 {
	return int64(len(e.Key) + len(e.Tenant) + len(e.Language) + len(e.Question) + len(e.Intent) + len(e.Answer) + 64)
}

// IsExpired checks if this cache entry has expired at now
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// RecordAccess updates access metadata when this entry is served
func (e *CacheEntry) RecordAccess() {
	e.AccessCount++
}
