package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_cache_hits_total",
			Help: "Total number of listing page cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_cache_misses_total",
			Help: "Total number of listing page cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to Redis
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_cache_stored_bytes_total",
			Help: "Total bytes of listing pages written to the cache",
		},
	)

	// CacheInvalidated tracks pages removed by scope invalidation
	CacheInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_cache_invalidated_total",
			Help: "Total number of cached pages removed by invalidation",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)
)
