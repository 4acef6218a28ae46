// Package state keeps client-side copies of backend collections in sync with
// the server. Every controller owns one Collection and applies server results
// to it only while its context is live and the controller is open.
package state

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"chamada/internal/model"
)

// Snapshot is a point-in-time copy of a collection.
type Snapshot[T any] struct {
	Items   []T
	Loading bool
	Err     string
}

type Collection[T any] struct {
	mu       sync.Mutex
	items    []T
	fetching int // fetches in flight
	err      string
	closed   bool
	id       func(T) model.ID
}

func newCollection[T any](id func(T) model.ID) *Collection[T] {
	return &Collection[T]{items: []T{}, id: id}
}

func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot[T]{
		Items:   append([]T(nil), c.items...),
		Loading: c.fetching > 0,
		Err:     c.err,
	}
}

func (c *Collection[T]) Items() []T {
	return c.Snapshot().Items
}

// Close ends the collection's lifetime. Results of calls still in flight are
// discarded.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// apply runs fn under the lock unless the collection is closed or ctx is done.
func (c *Collection[T]) apply(ctx context.Context, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

func (c *Collection[T]) open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// fetch replaces the items with load's result. A failed load keeps the
// previous items and records the error; it is logged and not returned.
func (c *Collection[T]) fetch(ctx context.Context, logger *zap.Logger, load func(context.Context) ([]T, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.fetching++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.fetching--
		c.mu.Unlock()
	}()

	items, err := load(ctx)
	if err != nil {
		if applyErr := c.apply(ctx, func() { c.err = Message(err) }); applyErr != nil {
			return applyErr
		}
		logger.Warn("fetch failed", zap.Error(err))
		return nil
	}
	return c.apply(ctx, func() {
		c.items = items
		c.err = ""
	})
}

// fail records err on the collection and returns it.
func (c *Collection[T]) fail(ctx context.Context, err error) error {
	_ = c.apply(ctx, func() { c.err = Message(err) })
	return err
}

func (c *Collection[T]) add(ctx context.Context, item T) error {
	return c.apply(ctx, func() {
		c.items = append(c.items, item)
		c.err = ""
	})
}

// replace swaps the entry holding item's id for item. Entries the collection
// does not hold are left alone.
func (c *Collection[T]) replace(ctx context.Context, item T) error {
	return c.apply(ctx, func() {
		c.replaceLocked(item)
		c.err = ""
	})
}

func (c *Collection[T]) replaceLocked(item T) bool {
	id := c.id(item)
	for i := range c.items {
		if c.id(c.items[i]) == id {
			c.items[i] = item
			return true
		}
	}
	return false
}

func (c *Collection[T]) remove(ctx context.Context, ids ...model.ID) error {
	drop := make(map[model.ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return c.apply(ctx, func() {
		kept := make([]T, 0, len(c.items))
		for _, item := range c.items {
			if _, ok := drop[c.id(item)]; !ok {
				kept = append(kept, item)
			}
		}
		c.items = kept
		c.err = ""
	})
}

func (c *Collection[T]) find(id model.ID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}
