package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// ErrDeleteUnsupported is returned by Source.Delete when the wrapped source
// cannot delete.
var ErrDeleteUnsupported = errors.New("wrapped source does not support delete")

// PageStore is the storage a cached source reads and writes.
// *Manager implements it.
type PageStore interface {
	Get(ctx context.Context, key PageKey) (*CachedPage, error)
	Set(ctx context.Context, key PageKey, entry *CachedPage) error
	InvalidateAll(ctx context.Context) (int, error)
}

type deleter interface {
	Delete(ctx context.Context, id string) error
}

// Source serves pages from a PageStore and fills it from a wrapped source.
type Source[T any] struct {
	src    pagination.Source[T]
	store  PageStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSource wraps src with a page cache holding pages for ttl.
func NewSource[T any](src pagination.Source[T], store PageStore, ttl time.Duration) *Source[T] {
	return &Source[T]{
		src:    src,
		store:  store,
		ttl:    ttl,
		logger: logging.NewLogger("cache"),
	}
}

// FetchPage implements pagination.Source.
func (s *Source[T]) FetchPage(ctx context.Context, q pagination.Query) (pagination.Page[T], error) {
	key := KeyFor(q)

	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var items []T
		if err := json.Unmarshal(entry.Items, &items); err == nil {
			s.logger.Debug().Str("key", key.String()).Int("items", len(items)).Msg("Page served from cache")
			return pagination.Page[T]{Items: items, Next: pagination.Cursor(entry.Next)}, nil
		}
		s.logger.Warn().Str("key", key.String()).Msg("Discarding undecodable cached page")
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed, fetching from source")
	}

	page, err := s.src.FetchPage(ctx, q)
	if err != nil {
		return page, err
	}

	s.put(ctx, key, page)
	return page, nil
}

func (s *Source[T]) put(ctx context.Context, key PageKey, page pagination.Page[T]) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Page not cacheable")
		return
	}

	now := time.Now()
	entry := &CachedPage{
		Items:    data,
		Next:     string(page.Next),
		Expires:  now.Add(s.ttl),
		CachedAt: now,
	}
	if err := s.store.Set(ctx, key, entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
}

// Delete removes id from the wrapped source and invalidates every cached
// page, since a listing belongs to several scopes at once.
func (s *Source[T]) Delete(ctx context.Context, id string) error {
	d, ok := s.src.(deleter)
	if !ok {
		return ErrDeleteUnsupported
	}
	if err := d.Delete(ctx, id); err != nil {
		return err
	}

	removed, err := s.store.InvalidateAll(ctx)
	if err != nil {
		// The delete itself succeeded; stale pages age out with the TTL.
		s.logger.Warn().Err(err).Str("id", id).Msg("Cache invalidation after delete failed")
		return nil
	}
	s.logger.Debug().Str("id", id).Int("pages", removed).Msg("Cache invalidated after delete")
	return nil
}
