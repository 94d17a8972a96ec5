// Package redisstore keeps listings in Redis and answers page queries from
// sorted-set indexes.
//
// Layout (default prefix "listings:"):
//
//	listings:data                  hash   id -> listing JSON
//	listings:idx:all               zset   id scored by timestamp (ms)
//	listings:idx:type:<type>       zset   per category
//	listings:idx:offer:<bool>      zset   offers / regular listings
//	listings:idx:userId:<uid>      zset   per owner
//
// Members with equal scores are ordered by id, which gives every scope a
// total order: newest first, ties broken by descending id.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "listings:"

var (
	// ErrNotFound is returned when a listing id is unknown.
	ErrNotFound = errors.New("listing not found")

	// ErrUnsupportedFilter is returned for filters on fields without an index.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrConflict is returned when concurrent writers kept changing the data
	// hash for maxTxAttempts attempts.
	ErrConflict = errors.New("concurrent update conflict")
)

// maxTxAttempts bounds optimistic transaction retries.
const maxTxAttempts = 16

var indexedFields = []string{listing.FieldType, listing.FieldOffer, listing.FieldUserID}

// Store is a Redis-backed listing store.
type Store struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store on the given client.
func New(redisClient *redis.Client, opts ...Option) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	s := &Store{
		redis:  redisClient,
		prefix: DefaultPrefix,
		logger: logging.NewLogger("redisstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) dataKey() string {
	return s.prefix + "data"
}

// indexKey returns the sorted set holding the scope of f.
func (s *Store) indexKey(f pagination.Filter) (string, error) {
	if f.IsZero() {
		return s.prefix + "idx:all", nil
	}
	for _, field := range indexedFields {
		if f.Field == field {
			return s.prefix + "idx:" + field + ":" + listing.FormatValue(f.Value), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFilter, f.Field)
}

// indexKeys returns every index l belongs to.
func (s *Store) indexKeys(l listing.Listing) []string {
	keys := []string{s.prefix + "idx:all"}
	for _, field := range indexedFields {
		v, _ := l.Field(field)
		key, _ := s.indexKey(pagination.Filter{Field: field, Value: v})
		keys = append(keys, key)
	}
	return keys
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Put stores listings, assigning ids and timestamps where missing.
func (s *Store) Put(ctx context.Context, ls ...listing.Listing) ([]listing.Listing, error) {
	out := make([]listing.Listing, 0, len(ls))
	for _, l := range ls {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if l.Timestamp.IsZero() {
			l.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(l)
		if err != nil {
			return out, fmt.Errorf("marshal listing %s: %w", l.ID, err)
		}

		// The previous version decides which index members to drop, so it is
		// read under WATCH and the write fails if anyone changed it meanwhile.
		err = s.update(ctx, func(tx *redis.Tx) error {
			prev, err := s.get(ctx, tx, l.ID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if prev != nil {
					for _, key := range s.indexKeys(*prev) {
						pipe.ZRem(ctx, key, l.ID)
					}
				}
				pipe.HSet(ctx, s.dataKey(), l.ID, data)
				for _, key := range s.indexKeys(l) {
					pipe.ZAdd(ctx, key, redis.Z{Score: score(l.Timestamp), Member: l.ID})
				}
				return nil
			})
			return err
		})
		if err != nil {
			return out, fmt.Errorf("store listing %s: %w", l.ID, err)
		}
		out = append(out, l)
	}

	s.logger.Debug().Int("count", len(out)).Msg("Listings stored")
	return out, nil
}

// Get returns the listing with the given id.
func (s *Store) Get(ctx context.Context, id string) (listing.Listing, error) {
	l, err := s.get(ctx, s.redis, id)
	if err != nil {
		return listing.Listing{}, err
	}
	return *l, nil
}

// hashReader is satisfied by *redis.Client and *redis.Tx.
type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// update runs fn with the data hash watched, retrying while other writers
// invalidate the transaction.
func (s *Store) update(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.redis.Watch(ctx, fn, s.dataKey())
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt).Msg("Listing data changed during transaction, retrying")
	}
	return ErrConflict
}

func (s *Store) get(ctx context.Context, r hashReader, id string) (*listing.Listing, error) {
	data, err := r.HGet(ctx, s.dataKey(), id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var l listing.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", id, err)
	}
	return &l, nil
}

// Delete removes a listing and its index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.update(ctx, func(tx *redis.Tx) error {
		l, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, s.dataKey(), id)
			for _, key := range s.indexKeys(*l) {
				pipe.ZRem(ctx, key, id)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}

	s.logger.Debug().Str("id", id).Msg("Listing deleted")
	return nil
}

// FetchPage implements pagination.Source.
func (s *Store) FetchPage(ctx context.Context, q pagination.Query) (pagination.Page[listing.Listing], error) {
	var empty pagination.Page[listing.Listing]

	if err := q.Validate(); err != nil {
		return empty, err
	}
	if q.Sort.Field != listing.FieldTimestamp {
		return empty, fmt.Errorf("%w: %s", pagination.ErrUnsupportedSort, q.Sort)
	}
	key, err := s.indexKey(q.Filter)
	if err != nil {
		return empty, err
	}

	var start int64
	if !q.First() {
		pos, err := pagination.DecodeCursor(q, q.Cursor)
		if err != nil {
			return empty, err
		}
		start, err = s.offsetAfter(ctx, key, pos, q.Sort.Desc)
		if err != nil {
			return empty, err
		}
	}

	stop := start + int64(q.PageSize) - 1
	var ids []string
	if q.Sort.Desc {
		ids, err = s.redis.ZRevRange(ctx, key, start, stop).Result()
	} else {
		ids, err = s.redis.ZRange(ctx, key, start, stop).Result()
	}
	if err != nil {
		return empty, fmt.Errorf("redis zrange %s: %w", key, err)
	}
	if len(ids) == 0 {
		return empty, nil
	}

	vals, err := s.redis.HMGet(ctx, s.dataKey(), ids...).Result()
	if err != nil {
		return empty, fmt.Errorf("redis hmget: %w", err)
	}

	items := make([]listing.Listing, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Deleted between the index read and the data read.
			s.logger.Debug().Str("id", ids[i]).Msg("Indexed listing vanished")
			continue
		}
		var l listing.Listing
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return empty, fmt.Errorf("decode listing %s: %w", ids[i], err)
		}
		items = append(items, l)
	}

	page := pagination.Page[listing.Listing]{Items: items}
	if len(items) > 0 {
		page.Next = pagination.EncodeCursor(q, items[len(items)-1].Position())
	}
	return page, nil
}

// offsetAfter returns the rank of the first member sorting after pos. It does
// not require pos to still be a member, so a deleted anchor keeps its place.
func (s *Store) offsetAfter(ctx context.Context, key string, pos pagination.Position, desc bool) (int64, error) {
	ms := pos.Timestamp.UnixMilli()
	at := strconv.FormatInt(ms, 10)

	var ahead int64
	var err error
	if desc {
		ahead, err = s.redis.ZCount(ctx, key, "("+at, "+inf").Result()
	} else {
		ahead, err = s.redis.ZCount(ctx, key, "-inf", "("+at).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("redis zcount %s: %w", key, err)
	}

	ties, err := s.redis.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: at, Max: at}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrangebyscore %s: %w", key, err)
	}
	for _, id := range ties {
		if (desc && id >= pos.ID) || (!desc && id <= pos.ID) {
			ahead++
		}
	}
	return ahead, nil
}
