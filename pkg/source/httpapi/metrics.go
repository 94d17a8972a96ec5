package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_api_requests_total",
		Help: "Total listings API requests by operation and status",
	}, []string{"operation", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listings_api_request_duration_seconds",
		Help:    "Listings API call duration in seconds by operation, retries included",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_api_errors_total",
		Help: "Total listings API errors by class",
	}, []string{"class"})

	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_api_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_api_retry_exhausted_total",
		Help: "Total number of calls that failed after all retry attempts by error class",
	}, []string{"error_class"})
)
