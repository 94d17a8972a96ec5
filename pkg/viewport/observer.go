package viewport

import (
	"fmt"
	"sync"
)

// DefaultThreshold is the visible share of the sentinel that counts as intersecting.
const DefaultThreshold = 0.5

// Rect is an axis-aligned rectangle in scroll-content coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Area returns the rectangle's area, zero for degenerate rectangles.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersect returns the overlap of r and o.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// VisibleRatio returns the share of target inside viewport, in [0, 1].
func VisibleRatio(viewport, target Rect) float64 {
	area := target.Area()
	if area == 0 {
		return 0
	}
	return viewport.Intersect(target).Area() / area
}

// Observer is a headless Trigger: callers report geometry through Update and
// subscribers receive an Event whenever the sentinel crosses the threshold.
// The first Update after a subscription always emits.
type Observer struct {
	threshold float64

	mu     sync.Mutex
	subs   map[*observation]struct{}
	closed bool
}

// NewObserver creates an observer firing when more than threshold of the
// sentinel is visible. Thresholds outside (0, 1] fall back to DefaultThreshold.
func NewObserver(threshold float64) *Observer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Observer{
		threshold: threshold,
		subs:      make(map[*observation]struct{}),
	}
}

// Threshold returns the configured threshold.
func (o *Observer) Threshold() float64 {
	return o.threshold
}

// Observe implements Trigger.
func (o *Observer) Observe() (Subscription, error) {
	return o.observe(nil)
}

// ObserveFunc implements FuncTrigger. fn runs inside Update with the observer
// locked; it must not call back into the observer.
func (o *Observer) ObserveFunc(fn func(Event)) (Subscription, error) {
	return o.observe(fn)
}

func (o *Observer) observe(fn func(Event)) (Subscription, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}

	sub := &observation{
		owner:  o,
		fn:     fn,
		events: make(chan Event, 16),
	}
	o.subs[sub] = struct{}{}
	return sub, nil
}

// Intersecting reports whether target counts as visible within viewport.
func (o *Observer) Intersecting(viewport, target Rect) bool {
	ratio := VisibleRatio(viewport, target)
	return ratio > 0 && ratio >= o.threshold
}

// Update recomputes intersection for the sentinel at target within viewport
// and notifies subscribers whose last reported state differs.
func (o *Observer) Update(viewport, target Rect) {
	intersecting := o.Intersecting(viewport, target)

	o.mu.Lock()
	defer o.mu.Unlock()

	for sub := range o.subs {
		sub.deliver(intersecting)
	}
}

// Subscribers returns the number of live subscriptions.
func (o *Observer) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Close releases every subscription and rejects new ones.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	for sub := range o.subs {
		sub.closeLocked()
	}
}

func (o *Observer) String() string {
	return fmt.Sprintf("Observer(threshold=%.2f, subscribers=%d)", o.threshold, o.Subscribers())
}

type observation struct {
	owner  *Observer
	fn     func(Event)
	events chan Event

	// guarded by owner.mu
	reported bool
	last     bool
	closed   bool
}

func (s *observation) Events() <-chan Event {
	return s.events
}

func (s *observation) Unobserve() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	s.closeLocked()
}

func (s *observation) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.owner.subs, s)
	close(s.events)
}

// deliver queues a transition. When the buffer is full the oldest pending
// event is dropped so the subscriber always ends on the latest state.
func (s *observation) deliver(intersecting bool) {
	if s.closed || (s.reported && s.last == intersecting) {
		return
	}
	s.reported = true
	s.last = intersecting

	if s.fn != nil {
		s.fn(Event{Intersecting: intersecting})
		return
	}

	for {
		select {
		case s.events <- Event{Intersecting: intersecting}:
			return
		default:
			select {
			case <-s.events:
			default:
			}
		}
	}
}
