// Package cache provides a Redis-backed page cache for listing sources.
//
// Pages are cached per query scope (filter and sort), page size and cursor.
// A cached page is served until its TTL expires or the scope is invalidated,
// which callers do after mutating the underlying store.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	src := cache.NewSource[listing.Listing](store, manager, 30*time.Second)
//
//	page, err := src.FetchPage(ctx, query)
//
// Deleting through the cached source removes the listing from the wrapped
// store and drops every cached page:
//
//	if err := src.Delete(ctx, id); err != nil {
//		return err
//	}
//
// # Metrics
//
//   - listings_cache_hits_total - Cache hits
//   - listings_cache_misses_total - Cache misses
//   - listings_cache_stored_bytes_total - Bytes written to Redis
//   - listings_cache_invalidated_total - Pages removed by invalidation
//   - listings_cache_errors_total{operation} - Cache operation errors
//
// A cache failure never fails a fetch: the cached source logs it and falls
// through to the wrapped source.
package cache
