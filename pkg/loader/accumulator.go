package loader

import (
	"slices"
	"sync"
)

// Accumulator is an append-only ordered sequence of items unique by key.
// Items only leave it through RemoveByID.
type Accumulator[T any] struct {
	mu    sync.RWMutex
	key   func(T) string
	items []T
	index map[string]struct{}
}

// NewAccumulator creates an empty accumulator identifying items by key.
func NewAccumulator[T any](key func(T) string) *Accumulator[T] {
	if key == nil {
		panic("accumulator key function cannot be nil")
	}
	return &Accumulator[T]{
		key:   key,
		index: make(map[string]struct{}),
	}
}

// Append adds items in order, skipping any whose key is already present
// (including duplicates within items). It returns the number added.
func (a *Accumulator[T]) Append(items []T) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := 0
	for _, item := range items {
		id := a.key(item)
		if _, ok := a.index[id]; ok {
			continue
		}
		a.index[id] = struct{}{}
		a.items = append(a.items, item)
		added++
	}
	return added
}

// RemoveByID removes the item with the given key and reports whether it was present.
func (a *Accumulator[T]) RemoveByID(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.index[id]; !ok {
		return false
	}
	delete(a.index, id)

	for i, item := range a.items {
		if a.key(item) == id {
			a.items = slices.Delete(a.items, i, i+1)
			break
		}
	}
	return true
}

// Contains reports whether an item with the given key is present.
func (a *Accumulator[T]) Contains(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.index[id]
	return ok
}

// Len returns the number of items.
func (a *Accumulator[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Snapshot returns a copy of the items in order.
func (a *Accumulator[T]) Snapshot() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}
