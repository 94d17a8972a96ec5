package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/listings-client/pkg/browse"
	"github.com/Sternrassler/listings-client/pkg/cache"
	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/Sternrassler/listings-client/pkg/ratelimit"
	"github.com/Sternrassler/listings-client/pkg/source/httpapi"
	"github.com/Sternrassler/listings-client/pkg/source/memory"
	"github.com/Sternrassler/listings-client/pkg/source/redisstore"
	"github.com/redis/go-redis/v9"
)

const (
	sourceMemory = "memory"
	sourceRedis  = "redis"
	sourceHTTP   = "http"
)

const defaultRedisURL = "redis://localhost:6379/0"

// backend is the configured data source with its optional capabilities.
type backend struct {
	source  pagination.Source[listing.Listing]
	deleter browse.Deleter

	// put is nil for sources that cannot be written.
	put func(ctx context.Context, ls []listing.Listing) error

	close func()
}

func openBackend(ctx context.Context, s settings) (*backend, error) {
	switch s.source {
	case sourceMemory:
		store := memory.New()
		store.Put(listing.Samples(s.memorySeed, time.Now().UTC())...)
		return &backend{
			source:  store,
			deleter: store,
			put: func(_ context.Context, ls []listing.Listing) error {
				store.Put(ls...)
				return nil
			},
			close: func() {},
		}, nil

	case sourceRedis:
		url := s.redisURL
		if url == "" {
			url = defaultRedisURL
		}
		rc, err := connectRedis(ctx, url)
		if err != nil {
			return nil, err
		}
		store := redisstore.New(rc)
		return &backend{
			source:  store,
			deleter: store,
			put: func(ctx context.Context, ls []listing.Listing) error {
				_, err := store.Put(ctx, ls...)
				return err
			},
			close: func() { rc.Close() },
		}, nil

	case sourceHTTP:
		return openHTTPBackend(ctx, s)

	default:
		return nil, fmt.Errorf("unknown source %q (want memory, redis or http)", s.source)
	}
}

// openHTTPBackend talks to the REST API. With a Redis URL the quota is shared
// through Redis and pages are cached there.
func openHTTPBackend(ctx context.Context, s settings) (*backend, error) {
	cfg := httpapi.DefaultConfig(s.apiURL, s.userAgent)

	var rc *redis.Client
	if s.redisURL != "" {
		var err error
		if rc, err = connectRedis(ctx, s.redisURL); err != nil {
			return nil, err
		}
		cfg.Tracker = ratelimit.NewTracker(rc, logging.NewLogger("ratelimit"))
	}

	client, err := httpapi.New(cfg)
	if err != nil {
		if rc != nil {
			rc.Close()
		}
		return nil, fmt.Errorf("create api client: %w", err)
	}

	b := &backend{
		source:  client,
		deleter: client,
		close:   func() {},
	}
	if rc != nil {
		b.close = func() { rc.Close() }
		if s.cacheTTL > 0 {
			cached := cache.NewSource[listing.Listing](client, cache.NewManager(rc), s.cacheTTL)
			b.source = cached
			b.deleter = cached
		}
	}
	return b, nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rc, nil
}

// scope selects one of the browse views.
type scope struct {
	name     string
	category string
	owner    string
}

func (sc scope) query() (pagination.Query, error) {
	switch sc.name {
	case browse.ScopeCategory:
		if !listing.ValidCategory(sc.category) {
			return pagination.Query{}, fmt.Errorf("unknown category %q", sc.category)
		}
		return browse.CategoryQuery(sc.category), nil
	case browse.ScopeOffers:
		return browse.OffersQuery(), nil
	case browse.ScopeOwner:
		if sc.owner == "" {
			return pagination.Query{}, fmt.Errorf("--owner is required for the owner scope")
		}
		return browse.OwnerQuery(sc.owner), nil
	default:
		return pagination.Query{}, fmt.Errorf("unknown scope %q (want category, offers or owner)", sc.name)
	}
}
