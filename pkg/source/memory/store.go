// Package memory provides an in-process listing store that answers page
// queries the same way the remote stores do.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a listing id is unknown.
var ErrNotFound = errors.New("listing not found")

// Option configures a Store.
type Option func(*Store)

// WithLatency delays every FetchPage by d, honouring context cancellation.
func WithLatency(d time.Duration) Option {
	return func(s *Store) {
		s.latency = d
	}
}

// Store holds listings in memory.
type Store struct {
	mu       sync.RWMutex
	listings map[string]listing.Listing
	latency  time.Duration
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{listings: make(map[string]listing.Listing)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or replaces listings. Listings without an id get a new one.
// It returns the stored listings.
func (s *Store) Put(ls ...listing.Listing) []listing.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]listing.Listing, len(ls))
	for i, l := range ls {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Timestamp.IsZero() {
			l.Timestamp = time.Now().UTC()
		}
		s.listings[l.ID] = l
		out[i] = l
	}
	return out
}

// Get returns the listing with the given id.
func (s *Store) Get(id string) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return listing.Listing{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l, nil
}

// Delete removes a listing.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.listings, id)
	return nil
}

// Len returns the number of stored listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}

// FetchPage implements pagination.Source.
func (s *Store) FetchPage(ctx context.Context, q pagination.Query) (pagination.Page[listing.Listing], error) {
	if err := q.Validate(); err != nil {
		return pagination.Page[listing.Listing]{}, err
	}
	if q.Sort.Field != listing.FieldTimestamp {
		return pagination.Page[listing.Listing]{}, fmt.Errorf("%w: %s", pagination.ErrUnsupportedSort, q.Sort)
	}

	var after *pagination.Position
	if !q.First() {
		pos, err := pagination.DecodeCursor(q, q.Cursor)
		if err != nil {
			return pagination.Page[listing.Listing]{}, err
		}
		after = &pos
	}

	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return pagination.Page[listing.Listing]{}, ctx.Err()
		case <-time.After(s.latency):
		}
	}

	s.mu.RLock()
	matched := make([]listing.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if l.Matches(q.Filter) {
			matched = append(matched, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return before(matched[i].Position(), matched[j].Position(), q.Sort.Desc)
	})

	start := 0
	if after != nil {
		start = sort.Search(len(matched), func(i int) bool {
			return before(*after, matched[i].Position(), q.Sort.Desc)
		})
	}

	end := min(start+q.PageSize, len(matched))
	items := matched[start:end]

	page := pagination.Page[listing.Listing]{Items: items}
	if len(items) > 0 {
		page.Next = pagination.EncodeCursor(q, items[len(items)-1].Position())
	}
	return page, nil
}

// before reports whether a sorts ahead of b. Ties on timestamp order by id in
// the same direction.
func before(a, b pagination.Position, desc bool) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		if desc {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Timestamp.Before(b.Timestamp)
	}
	if desc {
		return a.ID > b.ID
	}
	return a.ID < b.ID
}
