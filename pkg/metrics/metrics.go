// Package metrics exposes the Prometheus registry and HTTP handler shared by
// the listings client. Metrics are defined in their own packages (loader,
// cache, ratelimit, httpapi) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the listings client.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Loader Metrics (pkg/loader):
//   - listings_loader_fetches_total{scope, result} (Counter): Page fetches by result (page, empty, error, discarded)
//   - listings_loader_fetch_duration_seconds{scope} (Histogram): Data source call duration
//   - listings_loader_items_appended_total{scope} (Counter): Items added to the accumulator
//   - listings_loader_duplicates_skipped_total{scope} (Counter): Items dropped as already present
//   - listings_loader_discarded_total{scope} (Counter): Resolutions dropped after teardown
//
// Cache Metrics (pkg/cache):
//   - listings_cache_hits_total (Counter): Page cache hits
//   - listings_cache_misses_total (Counter): Page cache misses
//   - listings_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - listings_cache_invalidated_total (Counter): Pages removed by invalidation
//   - listings_cache_errors_total{operation} (Counter): Cache operation errors
//
// Quota Metrics (pkg/ratelimit):
//   - listings_api_quota_remaining (Gauge): Requests remaining in the API window
//   - listings_rate_limit_blocks_total (Counter): Requests refused on a critical quota
//   - listings_rate_limit_throttles_total (Counter): Requests delayed on a low quota
//
// Request Metrics (pkg/source/httpapi):
//   - listings_api_requests_total{operation, status} (Counter): Requests by operation and HTTP status
//   - listings_api_request_duration_seconds{operation} (Histogram): Call duration, retries included
//   - listings_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - listings_api_retries_total{error_class} (Counter): Retry attempts
//   - listings_api_retry_exhausted_total{error_class} (Counter): Calls failing after all retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(listings_cache_hits_total[5m])) /
//   (sum(rate(listings_cache_hits_total[5m])) + sum(rate(listings_cache_misses_total[5m])))
//
//   # Failed page fetches per scope
//   sum by (scope) (rate(listings_loader_fetches_total{result="error"}[5m]))
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(listings_loader_fetch_duration_seconds_bucket[5m]))
