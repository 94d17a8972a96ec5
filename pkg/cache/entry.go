package cache

import (
	"encoding/json"
	"time"
)

// CachedPage is a page of items as stored in Redis.
type CachedPage struct {
	// Items is the JSON encoded item slice.
	Items json.RawMessage `json:"items"`

	// Next is the continuation cursor of the page, empty on the last page.
	Next string `json:"next,omitempty"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CachedPage) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CachedPage) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
