// Package loader implements an infinite list loader: incremental, cursor-based
// retrieval of an ordered remote collection, driven by the visibility of a
// sentinel element at the end of a scrolled list.
//
// A Loader owns one browsing scope (fixed filter, sort and page size). Each
// time the sentinel becomes visible the Loader fetches the next page, unless
// a fetch is already in flight or the collection is exhausted. Results are
// folded into an Accumulator that keeps items in arrival order and unique by
// identity.
//
// # Basic Usage
//
//	l, err := loader.New(loader.Config[listing.Listing]{
//		Name:   "category",
//		Query:  query,
//		Source: src,
//		Key:    func(l listing.Listing) string { return l.ID },
//	})
//	if err != nil {
//		return err
//	}
//	defer l.Close()
//
//	// Feed visibility transitions from a viewport trigger.
//	l.OnVisibilityChanged(true)
//
//	snap := l.Snapshot()
//	fmt.Println(len(snap.Items), snap.Footer())
//
// # State Machine
//
//	idle ──visible──▶ fetching ──ok──▶ idle | exhausted
//	                          └─err──▶ failed ──visible──▶ fetching
//
// Exhausted is terminal. At most one page request is outstanding at any time;
// when a successful request resolves while the sentinel is still visible the
// next request is issued immediately, so a user parked at the bottom of the
// list keeps loading until the collection ends. Visibility is rechecked only
// after OnChange has published the new items, which gives the presentation
// layer the chance to report that the sentinel moved out of view.
//
// # Teardown
//
// Close detaches the loader. A request that is still outstanding is not
// cancelled; its resolution is discarded and never reaches the accumulator.
//
// # Metrics
//
//   - listings_loader_fetches_total{scope,result} - page requests by outcome
//   - listings_loader_fetch_duration_seconds{scope} - page request latency
//   - listings_loader_items_appended_total{scope} - items added to accumulators
//   - listings_loader_duplicates_skipped_total{scope} - items dropped as already present
//   - listings_loader_discarded_total{scope} - resolutions dropped after teardown
package loader
