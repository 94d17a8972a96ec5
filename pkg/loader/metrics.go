package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcome label values.
const (
	resultPage      = "page"
	resultEmpty     = "empty"
	resultError     = "error"
	resultDiscarded = "discarded"
)

var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_loader_fetches_total",
		Help: "Total page requests issued by loaders, by scope and result",
	}, []string{"scope", "result"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listings_loader_fetch_duration_seconds",
		Help:    "Page request duration in seconds by scope",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"scope"})

	itemsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_loader_items_appended_total",
		Help: "Total items appended to loader accumulators by scope",
	}, []string{"scope"})

	duplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_loader_duplicates_skipped_total",
		Help: "Total items skipped because their id was already loaded",
	}, []string{"scope"})

	discardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_loader_discarded_total",
		Help: "Total page resolutions discarded because the loader was torn down",
	}, []string{"scope"})
)
