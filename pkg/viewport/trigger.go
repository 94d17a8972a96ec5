// Package viewport bridges visibility observation of a sentinel element to a
// loader's visibility callback.
package viewport

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when observing through a closed trigger.
var ErrClosed = errors.New("trigger closed")

// Event reports whether the sentinel currently intersects the viewport
// above the trigger's threshold.
type Event struct {
	Intersecting bool
}

// Subscription is one acquired observation.
type Subscription interface {
	// Events delivers transitions until Unobserve is called.
	Events() <-chan Event

	// Unobserve releases the observation. It is safe to call more than once.
	Unobserve()
}

// Trigger is a platform visibility-observation capability.
type Trigger interface {
	Observe() (Subscription, error)
}

// FuncTrigger is a Trigger that can also call a function for each event
// instead of queueing it. The function runs on the goroutine reporting the
// geometry change.
type FuncTrigger interface {
	Trigger
	ObserveFunc(fn func(Event)) (Subscription, error)
}

// Sink receives visibility transitions. *loader.Loader implements it.
type Sink interface {
	OnVisibilityChanged(visible bool)
}

// Binding forwards a subscription's events to a sink until closed.
type Binding struct {
	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Bind subscribes to trigger and forwards every event to sink without
// debouncing. A FuncTrigger delivers inline, so the sink has seen a transition
// by the time the trigger reports it. The subscription is released when ctx
// is done or Close is called, whichever happens first.
func Bind(ctx context.Context, trigger Trigger, sink Sink) (*Binding, error) {
	var (
		sub Subscription
		err error
	)
	if ft, ok := trigger.(FuncTrigger); ok {
		sub, err = ft.ObserveFunc(func(ev Event) {
			sink.OnVisibilityChanged(ev.Intersecting)
		})
	} else {
		sub, err = trigger.Observe()
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	b := &Binding{
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go b.forward(ctx, sink)
	return b, nil
}

// forward drains queued events. Inline subscriptions never queue; their
// channel only closes on release.
func (b *Binding) forward(ctx context.Context, sink Sink) {
	defer close(b.done)
	defer b.release()

	events := b.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sink.OnVisibilityChanged(ev.Intersecting)
		}
	}
}

func (b *Binding) release() {
	b.once.Do(func() {
		b.sub.Unobserve()
		log.Debug().Str("component", "viewport").Msg("Sentinel unobserved")
	})
}

// Close stops forwarding, releases the subscription and waits for the
// forwarder to exit. It is safe to call more than once.
func (b *Binding) Close() {
	b.cancel()
	<-b.done
}

// Done is closed once the subscription has been released.
func (b *Binding) Done() <-chan struct{} {
	return b.done
}
