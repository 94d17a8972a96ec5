package viewport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []bool
	got    chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{got: make(chan struct{}, 64)}
}

func (s *recordingSink) OnVisibilityChanged(visible bool) {
	s.mu.Lock()
	s.events = append(s.events, visible)
	s.mu.Unlock()
	s.got <- struct{}{}
}

func (s *recordingSink) wait(t *testing.T, n int) []bool {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.got:
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d events", i, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.events))
	copy(out, s.events)
	return out
}

type fakeTrigger struct {
	events     chan Event
	unobserved int
	mu         sync.Mutex
	err        error
}

func (f *fakeTrigger) Observe() (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f, nil
}

func (f *fakeTrigger) Events() <-chan Event { return f.events }

func (f *fakeTrigger) Unobserve() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unobserved++
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unobserved
}

func TestBind_ForwardsEveryTransition(t *testing.T) {
	trigger := &fakeTrigger{events: make(chan Event, 8)}
	sink := newRecordingSink()

	b, err := Bind(context.Background(), trigger, sink)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer b.Close()

	trigger.events <- Event{Intersecting: true}
	trigger.events <- Event{Intersecting: true}
	trigger.events <- Event{Intersecting: false}
	trigger.events <- Event{Intersecting: true}

	got := sink.wait(t, 4)
	want := []bool{true, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("forwarded %v, want %v", got, want)
		}
	}
}

func TestBind_CloseReleasesOnce(t *testing.T) {
	trigger := &fakeTrigger{events: make(chan Event)}
	b, err := Bind(context.Background(), trigger, newRecordingSink())
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	b.Close()
	b.Close()

	if n := trigger.count(); n != 1 {
		t.Errorf("Unobserve called %d times, want 1", n)
	}
}

func TestBind_ContextCancelReleases(t *testing.T) {
	trigger := &fakeTrigger{events: make(chan Event)}
	ctx, cancel := context.WithCancel(context.Background())

	b, err := Bind(ctx, trigger, newRecordingSink())
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("binding not released after cancel")
	}
	b.Close()

	if n := trigger.count(); n != 1 {
		t.Errorf("Unobserve called %d times, want 1", n)
	}
}

func TestBind_ObserveError(t *testing.T) {
	observeErr := errors.New("no sentinel")
	_, err := Bind(context.Background(), &fakeTrigger{err: observeErr}, newRecordingSink())
	if !errors.Is(err, observeErr) {
		t.Errorf("Bind() error = %v, want %v", err, observeErr)
	}
}

func TestBind_WithObserver(t *testing.T) {
	o := NewObserver(DefaultThreshold)
	sink := newRecordingSink()

	b, err := Bind(context.Background(), o, sink)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	viewport := Rect{W: 10, H: 10}
	o.Update(viewport, Rect{Y: 8, W: 10, H: 1})
	o.Update(viewport, Rect{Y: 30, W: 10, H: 1})

	got := sink.wait(t, 2)
	if !got[0] || got[1] {
		t.Errorf("forwarded %v, want [true false]", got)
	}

	b.Close()
	if o.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", o.Subscribers())
	}
}

func TestBind_ObserverDeliversBeforeUpdateReturns(t *testing.T) {
	o := NewObserver(DefaultThreshold)
	sink := newRecordingSink()

	b, err := Bind(context.Background(), o, sink)
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer b.Close()

	viewport := Rect{W: 10, H: 10}
	steps := []struct {
		target Rect
		want   []bool
	}{
		{target: Rect{Y: 8, W: 10, H: 1}, want: []bool{true}},
		{target: Rect{Y: 9, W: 10, H: 1}, want: []bool{true}},
		{target: Rect{Y: 30, W: 10, H: 1}, want: []bool{true, false}},
	}

	for i, step := range steps {
		o.Update(viewport, step.target)

		sink.mu.Lock()
		got := append([]bool(nil), sink.events...)
		sink.mu.Unlock()

		if len(got) != len(step.want) {
			t.Fatalf("after update %d: sink saw %v, want %v", i, got, step.want)
		}
		for j := range got {
			if got[j] != step.want[j] {
				t.Fatalf("after update %d: sink saw %v, want %v", i, got, step.want)
			}
		}
	}
}
