package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Sternrassler/listings-client/pkg/pagination"
)

// KeyPrefix namespaces all cached pages.
const KeyPrefix = "listings:page:"

// PageKey identifies one cached page.
type PageKey struct {
	// Fingerprint is the query scope (pagination.Query.Fingerprint).
	Fingerprint string

	// PageSize is the requested page size.
	PageSize int

	// Cursor is the continuation cursor, empty for the first page.
	Cursor string
}

// KeyFor returns the cache key of q.
func KeyFor(q pagination.Query) PageKey {
	return PageKey{
		Fingerprint: q.Fingerprint(),
		PageSize:    q.PageSize,
		Cursor:      string(q.Cursor),
	}
}

// scope hashes the fingerprint so that filter values never reach a SCAN
// pattern unescaped.
func scope(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:8])
}

// ScopePattern matches every cached page of a fingerprint.
func ScopePattern(fingerprint string) string {
	return KeyPrefix + scope(fingerprint) + ":*"
}

// String generates a deterministic cache key string.
// Format: listings:page:<scope>:size=<n>:cursor=<cursor|first>
//
// Example:
//
//	listings:page:5d41402abc4b2a76:size=10:cursor=first
func (k PageKey) String() string {
	cursor := k.Cursor
	if cursor == "" {
		cursor = "first"
	}
	return fmt.Sprintf("%s%s:size=%d:cursor=%s", KeyPrefix, scope(k.Fingerprint), k.PageSize, cursor)
}
