package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint passed to SCAN during invalidation.
const scanBatch = 100

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a cached page by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key PageKey) (*CachedPage, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CachedPage
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores a page with a TTL derived from its Expires field.
func (m *Manager) Set(ctx context.Context, key PageKey, entry *CachedPage) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStoredBytes.Add(float64(len(data)))
	return nil
}

// Delete removes a cached page.
func (m *Manager) Delete(ctx context.Context, key PageKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateScope removes every cached page of one query fingerprint and
// returns how many were removed.
func (m *Manager) InvalidateScope(ctx context.Context, fingerprint string) (int, error) {
	return m.invalidate(ctx, ScopePattern(fingerprint))
}

// InvalidateAll removes every cached page.
func (m *Manager) InvalidateAll(ctx context.Context) (int, error) {
	return m.invalidate(ctx, KeyPrefix+"*")
}

func (m *Manager) invalidate(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := m.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := m.redis.Del(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("invalidate").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}

	CacheInvalidated.Add(float64(removed))
	return int(removed), nil
}
