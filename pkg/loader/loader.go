package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// Config holds the configuration of one loader.
type Config[T any] struct {
	// Name labels the scope in logs and metrics (e.g. "category", "offers").
	Name string

	// Query fixes filter, sort and page size. Its cursor must be empty.
	Query pagination.Query

	// Source answers page queries.
	Source pagination.Source[T]

	// Key returns the identity of an item.
	Key func(T) string

	// Context is passed to every source call. Defaults to context.Background.
	// Close does not cancel it.
	Context context.Context

	// Logger defaults to the global logger with component=loader.
	Logger *zerolog.Logger

	// OnChange, if set, receives a snapshot after every state change. Calls
	// are serialized and each carries the state current when it was taken.
	// After a page is folded in, OnChange runs before the loader decides on a
	// follow-up request, so it may report new sentinel visibility through
	// OnVisibilityChanged. It must not call FetchNextPage or RemoveByID.
	OnChange func(Snapshot[T])

	// OnError, if set, receives source failures wrapped with ErrSourceUnavailable.
	OnError func(error)
}

// Loader fetches pages of an ordered collection on demand and accumulates them.
// It is safe for concurrent use.
type Loader[T any] struct {
	name     string
	query    pagination.Query
	source   pagination.Source[T]
	acc      *Accumulator[T]
	ctx      context.Context
	logger   zerolog.Logger
	onChange func(Snapshot[T])
	onError  func(error)

	mu        sync.Mutex
	cursor    pagination.Cursor
	visible   bool
	fetching  bool
	exhausted bool
	failed    bool
	closed    bool
	calls     int

	notifyMu sync.Mutex
}

// New creates a loader with empty state.
func New[T any](cfg Config[T]) (*Loader[T], error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("key function is required")
	}
	if !cfg.Query.First() {
		return nil, fmt.Errorf("query must not carry a cursor")
	}
	if err := cfg.Query.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	logger := logging.NewLogger("loader").With().Str("scope", cfg.Name).Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("scope", cfg.Name).Logger()
	}

	return &Loader[T]{
		name:     cfg.Name,
		query:    cfg.Query,
		source:   cfg.Source,
		acc:      NewAccumulator(cfg.Key),
		ctx:      cfg.Context,
		logger:   logger,
		onChange: cfg.OnChange,
		onError:  cfg.OnError,
	}, nil
}

// OnVisibilityChanged records the sentinel's visibility. A true signal starts
// a fetch unless one is in flight or the collection is exhausted; in those
// cases it is only recorded.
func (l *Loader[T]) OnVisibilityChanged(visible bool) {
	l.mu.Lock()
	l.visible = visible
	start := visible && l.beginLocked()
	l.mu.Unlock()

	l.logger.Debug().
		Bool("visible", visible).
		Bool("fetch_started", start).
		Msg("Visibility changed")

	if !start {
		return
	}
	go func() {
		l.notify()
		l.run()
	}()
}

// FetchNextPage issues one page request and waits for it to resolve.
// It fails fast with ErrFetchInFlight, ErrExhausted or ErrTornDown when the
// gate is closed. Source failures are returned wrapped with ErrSourceUnavailable.
func (l *Loader[T]) FetchNextPage(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return ErrTornDown
	case l.exhausted:
		l.mu.Unlock()
		return ErrExhausted
	case l.fetching:
		l.mu.Unlock()
		return ErrFetchInFlight
	}
	l.beginLocked()
	l.mu.Unlock()
	l.notify()

	again, err := l.fetch(ctx)
	if again {
		go l.run()
	}
	return err
}

// RemoveByID drops a loaded item without contacting the source.
// Cursor and exhaustion are unaffected.
func (l *Loader[T]) RemoveByID(id string) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	removed := l.acc.RemoveByID(id)
	l.mu.Unlock()

	if removed {
		l.logger.Debug().Str("id", id).Msg("Item removed locally")
		l.notify()
	}
	return removed
}

// Snapshot returns the current state.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Cursor returns the continuation cursor of the last loaded page.
func (l *Loader[T]) Cursor() pagination.Cursor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Query returns the fixed query of the loader.
func (l *Loader[T]) Query() pagination.Query {
	return l.query
}

// Close tears the loader down. An outstanding request keeps running but its
// result is discarded. Close is idempotent.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.visible = false
	inFlight := l.fetching
	l.mu.Unlock()

	l.logger.Debug().Bool("in_flight", inFlight).Msg("Loader closed")
}

// beginLocked takes the single-flight gate if it is open.
func (l *Loader[T]) beginLocked() bool {
	if l.closed || l.fetching || l.exhausted {
		return false
	}
	l.fetching = true
	l.failed = false
	l.calls++
	return true
}

// run drives requests while each resolution hands the gate on.
func (l *Loader[T]) run() {
	for {
		again, _ := l.fetch(l.ctx)
		if !again {
			return
		}
	}
}

// fetch performs one request for a gate already held. It reports whether the
// gate was kept for an immediate follow-up request.
func (l *Loader[T]) fetch(ctx context.Context) (bool, error) {
	l.mu.Lock()
	q := l.query.WithCursor(l.cursor)
	l.mu.Unlock()

	l.logger.Debug().
		Bool("first_page", q.First()).
		Int("page_size", q.PageSize).
		Msg("Fetching page")

	start := time.Now()
	page, err := l.source.FetchPage(ctx, q)
	fetchDuration.WithLabelValues(l.name).Observe(time.Since(start).Seconds())

	return l.resolve(q, page, err)
}

// resolve folds a request outcome into state.
func (l *Loader[T]) resolve(q pagination.Query, page pagination.Page[T], err error) (bool, error) {
	l.mu.Lock()

	if l.closed {
		l.fetching = false
		l.mu.Unlock()

		discardedTotal.WithLabelValues(l.name).Inc()
		fetchesTotal.WithLabelValues(l.name, resultDiscarded).Inc()
		l.logger.Debug().Msg("Discarding page resolved after teardown")
		return false, ErrTornDown
	}

	if err != nil {
		l.fetching = false
		l.failed = true
		l.mu.Unlock()

		fetchesTotal.WithLabelValues(l.name, resultError).Inc()
		wrapped := fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		l.logger.Warn().Err(err).Msg("Page fetch failed")

		l.notify()
		if l.onError != nil {
			l.onError(wrapped)
		}
		return false, wrapped
	}

	added, skipped := 0, 0
	switch {
	case page.Empty():
		l.exhausted = true
		fetchesTotal.WithLabelValues(l.name, resultEmpty).Inc()
	default:
		added = l.acc.Append(page.Items)
		skipped = len(page.Items) - added
		fetchesTotal.WithLabelValues(l.name, resultPage).Inc()

		if page.Short(q.PageSize) {
			l.exhausted = true
		}
		if page.Next != "" {
			l.cursor = page.Next
		} else if !l.exhausted {
			// A full page without a continuation cannot be followed.
			l.logger.Warn().Int("items", len(page.Items)).Msg("Full page carried no cursor; treating collection as exhausted")
			l.exhausted = true
		}
	}

	exhausted, total := l.exhausted, l.acc.Len()
	if exhausted {
		l.fetching = false
	}
	l.mu.Unlock()

	itemsAppended.WithLabelValues(l.name).Add(float64(added))
	duplicatesSkipped.WithLabelValues(l.name).Add(float64(skipped))

	l.logger.Debug().
		Int("added", added).
		Int("skipped", skipped).
		Int("total", total).
		Bool("exhausted", exhausted).
		Msg("Page resolved")

	// The gate stays held while the new items are published so that the
	// presentation layer can move the sentinel before visibility is rechecked.
	l.notify()
	if exhausted {
		return false, nil
	}

	l.mu.Lock()
	closed := l.closed
	again := l.visible && !closed
	if again {
		l.calls++
	} else {
		l.fetching = false
	}
	l.mu.Unlock()

	if !again && !closed {
		l.notify()
	}
	l.logger.Debug().Bool("follow_up", again).Msg("Visibility rechecked")
	return again, nil
}

func (l *Loader[T]) snapshotLocked() Snapshot[T] {
	state := StateIdle
	switch {
	case l.exhausted:
		state = StateExhausted
	case l.fetching:
		state = StateFetching
	case l.failed:
		state = StateFailed
	}

	return Snapshot[T]{
		Items:     l.acc.Snapshot(),
		State:     state,
		Fetching:  l.fetching,
		Exhausted: l.exhausted,
		Failed:    l.failed,
		Calls:     l.calls,
	}
}

// notify publishes the current state. Holding notifyMu while the snapshot is
// taken keeps deliveries in state order.
func (l *Loader[T]) notify() {
	if l.onChange == nil {
		return
	}
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	l.onChange(l.Snapshot())
}
