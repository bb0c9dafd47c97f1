package comms

import (
	"context"
	"fmt"
	"sync"
)

// DefaultHistorySize is used when NewInMemoryBus is given a non-positive size.
const DefaultHistorySize = 1000

// InMemoryBus is a thread-safe in-process outcome bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[Kind][]handlerEntry
	history  []*Outcome
	maxHist  int
	nextID   int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus keeping at most size outcomes.
func NewInMemoryBus(size int) *InMemoryBus {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &InMemoryBus{
		handlers: make(map[Kind][]handlerEntry),
		maxHist:  size,
	}
}

// Publish appends o to the history and calls matching handlers outside the lock.
// Handler errors are collected; every handler still runs.
func (b *InMemoryBus) Publish(ctx context.Context, o *Outcome) error {
	b.mu.Lock()
	b.history = append(b.history, o)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	var targets []Handler
	for _, e := range b.handlers[o.Kind] {
		targets = append(targets, e.handler)
	}
	if o.Kind != KindAll {
		for _, e := range b.handlers[KindAll] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %d handler error(s): %w", len(errs), errs[0])
	}
	return nil
}

// Subscribe registers handler for kind. KindAll receives everything.
func (b *InMemoryBus) Subscribe(kind Kind, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[kind]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, kind)
		} else {
			b.handlers[kind] = filtered
		}
	}
}

// History returns the most recent limit outcomes of kind in chronological order.
// A non-positive limit returns all of them.
func (b *InMemoryBus) History(kind Kind, limit int) ([]*Outcome, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Outcome
	for i := len(b.history) - 1; i >= 0; i-- {
		o := b.history[i]
		if kind == KindAll || o.Kind == kind {
			result = append(result, o)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
