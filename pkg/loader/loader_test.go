package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// step scripts one source response. A non-nil release blocks the call until closed.
type step struct {
	items   []item
	next    pagination.Cursor
	err     error
	release chan struct{}
}

type fakeSource struct {
	mu      sync.Mutex
	steps   []step
	queries []pagination.Query
	started chan pagination.Query
}

func newFakeSource(steps ...step) *fakeSource {
	return &fakeSource{
		steps:   steps,
		started: make(chan pagination.Query, 64),
	}
}

func (f *fakeSource) FetchPage(ctx context.Context, q pagination.Query) (pagination.Page[item], error) {
	f.mu.Lock()
	i := len(f.queries)
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	f.started <- q

	if i >= len(f.steps) {
		return pagination.Page[item]{}, fmt.Errorf("unexpected call %d", i+1)
	}
	s := f.steps[i]
	if s.release != nil {
		<-s.release
	}
	return pagination.Page[item]{Items: s.items, Next: s.next}, s.err
}

func (f *fakeSource) calls() []pagination.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pagination.Query, len(f.queries))
	copy(out, f.queries)
	return out
}

func makeItems(prefix string, n int) []item {
	out := make([]item, n)
	for i := range out {
		out[i] = item{ID: fmt.Sprintf("%s-%02d", prefix, i)}
	}
	return out
}

func testQuery(pageSize int) pagination.Query {
	return pagination.Query{
		Filter:   pagination.Filter{Field: "type", Value: "rent"},
		Sort:     pagination.SortByTimestampDesc,
		PageSize: pageSize,
	}
}

func newTestLoader(t *testing.T, src pagination.Source[item], pageSize int, mutate ...func(*Config[item])) *Loader[item] {
	t.Helper()
	logger := zerolog.Nop()
	cfg := Config[item]{
		Name:   "test",
		Query:  testQuery(pageSize),
		Source: src,
		Key:    itemKey,
		Logger: &logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

// waitIdle blocks until no request holds the gate. The gate is taken
// synchronously by OnVisibilityChanged and FetchNextPage, so a snapshot that
// is not fetching means every request issued so far has resolved.
func waitIdle(t *testing.T, l *Loader[item]) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for l.Snapshot().Fetching {
		if time.Now().After(deadline) {
			t.Fatal("loader did not become idle")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitStarted(t *testing.T, src *fakeSource) pagination.Query {
	t.Helper()
	select {
	case q := <-src.started:
		return q
	case <-time.After(5 * time.Second):
		t.Fatal("source call was not issued")
		return pagination.Query{}
	}
}

func TestNew_Validation(t *testing.T) {
	src := newFakeSource()

	tests := []struct {
		name     string
		config   Config[item]
		errorMsg string
	}{
		{
			name:   "valid config",
			config: Config[item]{Query: testQuery(10), Source: src, Key: itemKey},
		},
		{
			name:     "nil source",
			config:   Config[item]{Query: testQuery(10), Key: itemKey},
			errorMsg: "source is required",
		},
		{
			name:     "nil key",
			config:   Config[item]{Query: testQuery(10), Source: src},
			errorMsg: "key function is required",
		},
		{
			name:     "query with cursor",
			config:   Config[item]{Query: testQuery(10).WithCursor("c"), Source: src, Key: itemKey},
			errorMsg: "query must not carry a cursor",
		},
		{
			name:     "zero page size",
			config:   Config[item]{Query: testQuery(0), Source: src, Key: itemKey},
			errorMsg: "invalid page query: page size must be > 0 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.config)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("New() unexpected error: %v", err)
				}
				if l.Snapshot().State != StateIdle {
					t.Errorf("initial state = %v, want idle", l.Snapshot().State)
				}
				return
			}
			if err == nil || err.Error() != tt.errorMsg {
				t.Errorf("New() error = %v, want %q", err, tt.errorMsg)
			}
		})
	}
}

func TestLoader_FullThenShortPage(t *testing.T) {
	src := newFakeSource(
		step{items: makeItems("p1", 10), next: "C1"},
		step{items: makeItems("p2", 4), next: "C2"},
	)
	l := newTestLoader(t, src, 10)

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	snap := l.Snapshot()
	if len(snap.Items) != 14 {
		t.Errorf("items = %d, want 14", len(snap.Items))
	}
	if !snap.Exhausted || snap.State != StateExhausted {
		t.Errorf("state = %v exhausted=%v, want exhausted", snap.State, snap.Exhausted)
	}
	if snap.Fetching {
		t.Error("fetching should be false")
	}

	calls := src.calls()
	if len(calls) != 2 {
		t.Fatalf("source calls = %d, want 2", len(calls))
	}
	if !calls[0].First() {
		t.Errorf("first call cursor = %q, want empty", calls[0].Cursor)
	}
	if calls[1].Cursor != "C1" {
		t.Errorf("second call cursor = %q, want C1", calls[1].Cursor)
	}
	if l.Cursor() != "C2" {
		t.Errorf("cursor = %q, want C2", l.Cursor())
	}

	l.OnVisibilityChanged(false)
	l.OnVisibilityChanged(true)
	waitIdle(t, l)
	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls after exhaustion = %d, want 2", n)
	}
	if snap.Footer() != FooterEnd {
		t.Errorf("footer = %v, want end", snap.Footer())
	}
}

func TestLoader_FetchNextPageTerminates(t *testing.T) {
	src := newFakeSource(
		step{items: makeItems("p1", 3), next: "C1"},
		step{items: makeItems("p2", 1), next: "C2"},
	)
	l := newTestLoader(t, src, 3)
	ctx := context.Background()

	if err := l.FetchNextPage(ctx); err != nil {
		t.Fatalf("first FetchNextPage() error = %v", err)
	}
	if l.Snapshot().Exhausted {
		t.Fatal("exhausted after a full page")
	}
	if err := l.FetchNextPage(ctx); err != nil {
		t.Fatalf("second FetchNextPage() error = %v", err)
	}
	if err := l.FetchNextPage(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("third FetchNextPage() error = %v, want ErrExhausted", err)
	}

	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
	if got := len(l.Snapshot().Items); got != 4 {
		t.Errorf("items = %d, want 4", got)
	}
}

func TestLoader_EmptyFirstPage(t *testing.T) {
	src := newFakeSource(step{})
	l := newTestLoader(t, src, 10)

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	for i := 0; i < 3; i++ {
		l.OnVisibilityChanged(false)
		l.OnVisibilityChanged(true)
	}
	waitIdle(t, l)

	snap := l.Snapshot()
	if len(snap.Items) != 0 || !snap.Exhausted {
		t.Errorf("items = %d exhausted = %v, want 0 and true", len(snap.Items), snap.Exhausted)
	}
	if n := len(src.calls()); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	if l.Cursor() != "" {
		t.Errorf("cursor = %q, want empty", l.Cursor())
	}
	if snap.Footer() != FooterNoResults {
		t.Errorf("footer = %v, want no results", snap.Footer())
	}
}

func TestLoader_FailureIsRetryableOnNextTrigger(t *testing.T) {
	backendErr := errors.New("connection refused")
	src := newFakeSource(
		step{err: backendErr},
		step{items: makeItems("p1", 2), next: "C1"},
	)

	var (
		mu   sync.Mutex
		errs []error
	)
	l := newTestLoader(t, src, 10, func(c *Config[item]) {
		c.OnError = func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	})

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	snap := l.Snapshot()
	if len(snap.Items) != 0 || snap.Exhausted || snap.Fetching {
		t.Fatalf("after failure: items=%d exhausted=%v fetching=%v", len(snap.Items), snap.Exhausted, snap.Fetching)
	}
	if snap.State != StateFailed || !snap.Failed {
		t.Errorf("state = %v, want idle-with-error", snap.State)
	}
	if snap.Footer() != FooterFailed {
		t.Errorf("footer = %v, want failed", snap.Footer())
	}
	if n := len(src.calls()); n != 1 {
		t.Fatalf("loader retried on its own: %d calls", n)
	}

	mu.Lock()
	if len(errs) != 1 || !errors.Is(errs[0], ErrSourceUnavailable) || !errors.Is(errs[0], backendErr) {
		t.Errorf("reported errors = %v", errs)
	}
	mu.Unlock()

	l.OnVisibilityChanged(false)
	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
	if !src.calls()[1].First() {
		t.Error("retry should request the first page again")
	}
	snap = l.Snapshot()
	if len(snap.Items) != 2 || !snap.Exhausted || snap.Failed {
		t.Errorf("after retry: items=%d exhausted=%v failed=%v", len(snap.Items), snap.Exhausted, snap.Failed)
	}
}

func TestLoader_FetchNextPageReportsSourceError(t *testing.T) {
	backendErr := errors.New("503")
	src := newFakeSource(step{err: backendErr})
	l := newTestLoader(t, src, 10)

	err := l.FetchNextPage(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, backendErr) {
		t.Errorf("FetchNextPage() error = %v", err)
	}
}

func TestLoader_VisibilityBurstWhilePending(t *testing.T) {
	release := make(chan struct{})
	src := newFakeSource(
		step{items: makeItems("p1", 10), next: "C1", release: release},
		step{items: makeItems("p2", 3), next: "C2"},
	)
	l := newTestLoader(t, src, 10)

	l.OnVisibilityChanged(true)
	waitStarted(t, src)

	l.OnVisibilityChanged(false)
	l.OnVisibilityChanged(true)

	if n := len(src.calls()); n != 1 {
		t.Fatalf("source calls during burst = %d, want 1", n)
	}
	if !l.Snapshot().Fetching {
		t.Error("fetching should be true while the call is pending")
	}

	close(release)
	q := waitStarted(t, src)
	if q.Cursor != "C1" {
		t.Errorf("follow-up cursor = %q, want C1", q.Cursor)
	}
	waitIdle(t, l)

	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
	if got := len(l.Snapshot().Items); got != 13 {
		t.Errorf("items = %d, want 13", got)
	}
}

func TestLoader_NoFollowUpWhenSentinelLeft(t *testing.T) {
	release := make(chan struct{})
	src := newFakeSource(step{items: makeItems("p1", 10), next: "C1", release: release})
	l := newTestLoader(t, src, 10)

	l.OnVisibilityChanged(true)
	waitStarted(t, src)
	l.OnVisibilityChanged(false)
	close(release)
	waitIdle(t, l)

	snap := l.Snapshot()
	if n := len(src.calls()); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	if snap.State != StateIdle || snap.Footer() != FooterReady {
		t.Errorf("state = %v footer = %v, want idle/ready", snap.State, snap.Footer())
	}
}

func TestLoader_ConcurrentTriggersIssueOneCall(t *testing.T) {
	release := make(chan struct{})
	src := newFakeSource(step{items: makeItems("p1", 1), release: release})
	l := newTestLoader(t, src, 10)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.OnVisibilityChanged(true)
		}()
	}
	wg.Wait()
	waitStarted(t, src)

	if err := l.FetchNextPage(context.Background()); !errors.Is(err, ErrFetchInFlight) {
		t.Errorf("FetchNextPage() error = %v, want ErrFetchInFlight", err)
	}

	close(release)
	waitIdle(t, l)

	if n := len(src.calls()); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
}

func TestLoader_DeduplicatesAcrossCursorBoundary(t *testing.T) {
	first := makeItems("p", 10)
	src := newFakeSource(
		step{items: first, next: "C1"},
		step{items: []item{first[9], {ID: "new"}}, next: "C2"},
	)
	l := newTestLoader(t, src, 10)

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	snap := l.Snapshot()
	if len(snap.Items) != 11 {
		t.Fatalf("items = %d, want 11", len(snap.Items))
	}
	if snap.Items[10].ID != "new" {
		t.Errorf("last item = %q, want new", snap.Items[10].ID)
	}
}

func TestLoader_FullPageWithoutCursorEnds(t *testing.T) {
	src := newFakeSource(step{items: makeItems("p1", 5)})
	l := newTestLoader(t, src, 5)

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	if !l.Snapshot().Exhausted {
		t.Error("a full page without a cursor should end the collection")
	}
	if n := len(src.calls()); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
}

func TestLoader_TeardownDiscardsResolution(t *testing.T) {
	release := make(chan struct{})
	src := newFakeSource(step{items: makeItems("p1", 10), next: "C1", release: release})

	var (
		mu      sync.Mutex
		changes []Snapshot[item]
		errs    int
	)
	l := newTestLoader(t, src, 10, func(c *Config[item]) {
		c.OnChange = func(s Snapshot[item]) {
			mu.Lock()
			changes = append(changes, s)
			mu.Unlock()
		}
		c.OnError = func(error) {
			mu.Lock()
			errs++
			mu.Unlock()
		}
	})

	l.OnVisibilityChanged(true)
	waitStarted(t, src)
	l.Close()
	close(release)
	waitIdle(t, l)

	snap := l.Snapshot()
	if len(snap.Items) != 0 {
		t.Errorf("torn-down loader accumulated %d items", len(snap.Items))
	}
	if l.Cursor() != "" {
		t.Errorf("cursor = %q, want empty", l.Cursor())
	}

	mu.Lock()
	for _, c := range changes {
		if len(c.Items) != 0 {
			t.Errorf("change published after teardown: %d items", len(c.Items))
		}
	}
	if errs != 0 {
		t.Errorf("teardown surfaced %d errors", errs)
	}
	mu.Unlock()

	if err := l.FetchNextPage(context.Background()); !errors.Is(err, ErrTornDown) {
		t.Errorf("FetchNextPage() after Close error = %v, want ErrTornDown", err)
	}
	l.OnVisibilityChanged(true)
	if n := len(src.calls()); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	l.Close()
}

func TestLoader_RemoveByID(t *testing.T) {
	src := newFakeSource(step{items: makeItems("p1", 3), next: "C1"})
	l := newTestLoader(t, src, 5)

	if err := l.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("FetchNextPage() error = %v", err)
	}

	if !l.RemoveByID("p1-01") {
		t.Error("RemoveByID(p1-01) = false, want true")
	}
	if l.RemoveByID("p1-01") {
		t.Error("second RemoveByID(p1-01) = true, want false")
	}

	snap := l.Snapshot()
	equalIDs(t, snap.Items, "p1-00", "p1-02")
	if !snap.Exhausted || l.Cursor() != "C1" {
		t.Errorf("removal changed fetch state: exhausted=%v cursor=%q", snap.Exhausted, l.Cursor())
	}
	if n := len(src.calls()); n != 1 {
		t.Errorf("removal contacted the source: %d calls", n)
	}
}

func TestLoader_OnChangeObservesFetching(t *testing.T) {
	src := newFakeSource(step{items: makeItems("p1", 2), next: "C1"})

	var (
		mu     sync.Mutex
		states []State
	)
	l := newTestLoader(t, src, 5, func(c *Config[item]) {
		c.OnChange = func(s Snapshot[item]) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		}
	})

	if err := l.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("FetchNextPage() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateFetching || states[1] != StateExhausted {
		t.Errorf("states = %v, want [fetching exhausted]", states)
	}
}

func TestLoader_NoFollowUpWhenOnChangeHidesSentinel(t *testing.T) {
	src := newFakeSource(
		step{items: makeItems("p1", 10), next: "C1"},
		step{items: makeItems("p2", 10), next: "C2"},
	)

	// The new rows push the sentinel out of view as soon as they are shown.
	var l *Loader[item]
	l = newTestLoader(t, src, 10, func(c *Config[item]) {
		c.OnChange = func(s Snapshot[item]) {
			if len(s.Items) > 0 {
				l.OnVisibilityChanged(false)
			}
		}
	})

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	if n := len(src.calls()); n != 1 {
		t.Fatalf("source calls = %d, want 1", n)
	}
	snap := l.Snapshot()
	if len(snap.Items) != 10 || snap.Exhausted || snap.Footer() != FooterReady {
		t.Errorf("items=%d exhausted=%v footer=%v", len(snap.Items), snap.Exhausted, snap.Footer())
	}

	// Scrolling back to the sentinel loads the next page.
	l.OnVisibilityChanged(true)
	waitIdle(t, l)
	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
}

func TestLoader_FollowUpWhenOnChangeKeepsSentinel(t *testing.T) {
	src := newFakeSource(
		step{items: makeItems("p1", 10), next: "C1"},
		step{items: makeItems("p2", 2), next: "C2"},
	)

	var l *Loader[item]
	l = newTestLoader(t, src, 10, func(c *Config[item]) {
		c.OnChange = func(Snapshot[item]) {
			l.OnVisibilityChanged(true)
		}
	})

	l.OnVisibilityChanged(true)
	waitIdle(t, l)

	if n := len(src.calls()); n != 2 {
		t.Errorf("source calls = %d, want 2", n)
	}
	if !l.Snapshot().Exhausted {
		t.Error("short second page should end the collection")
	}
}

func TestLoader_ChangesArriveInStateOrder(t *testing.T) {
	src := newFakeSource(step{items: makeItems("p1", 40), next: "C1"})

	var (
		mu      sync.Mutex
		lengths []int
	)
	l := newTestLoader(t, src, 50, func(c *Config[item]) {
		c.OnChange = func(s Snapshot[item]) {
			mu.Lock()
			lengths = append(lengths, len(s.Items))
			mu.Unlock()
		}
	})

	if err := l.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("FetchNextPage() error = %v", err)
	}
	mu.Lock()
	lengths = nil
	mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			l.RemoveByID(id)
		}(fmt.Sprintf("p1-%02d", i))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(lengths); i++ {
		if lengths[i] > lengths[i-1] {
			t.Fatalf("change %d reports %d items after %d", i, lengths[i], lengths[i-1])
		}
	}
	if last := lengths[len(lengths)-1]; last != 0 {
		t.Errorf("last change reports %d items, want 0", last)
	}
}
