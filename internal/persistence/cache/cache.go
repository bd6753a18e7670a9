// Package cache provides the write-through cache the stores sit on.
//
// Consistency contract: every mutation updates the map synchronously and
// then submits its durable op, so any later read on the main loop observes
// the write (read-your-writes) whether or not the op has landed. A failed op
// leaves the cache in its optimistic state; callers that must undo it do so
// explicitly.
//
// A WriteThrough is not safe for concurrent use; it belongs to the engine
// loop.
package cache

import "peaceclaims.dev/internal/persistence/store"

type WriteThrough[K comparable, V any] struct {
	items  map[K]V
	writer *store.Writer
}

func New[K comparable, V any](w *store.Writer) *WriteThrough[K, V] {
	return &WriteThrough[K, V]{items: map[K]V{}, writer: w}
}

// Warm inserts v without persisting it.
func (c *WriteThrough[K, V]) Warm(k K, v V) { c.items[k] = v }

func (c *WriteThrough[K, V]) Get(k K) (V, bool) {
	v, ok := c.items[k]
	return v, ok
}

func (c *WriteThrough[K, V]) Len() int { return len(c.items) }

func (c *WriteThrough[K, V]) Put(k K, v V, op store.Op) *store.Pending {
	c.items[k] = v
	return c.writer.Submit(op)
}

// Delete removes k and submits op even when k was absent, so a stale durable
// row is cleaned up as well.
func (c *WriteThrough[K, V]) Delete(k K, op store.Op) *store.Pending {
	delete(c.items, k)
	return c.writer.Submit(op)
}

// DeleteFunc removes every entry matching pred, submits one op for the batch
// and returns the removed values.
func (c *WriteThrough[K, V]) DeleteFunc(pred func(K, V) bool, op store.Op) ([]V, *store.Pending) {
	var removed []V
	for k, v := range c.items {
		if pred(k, v) {
			removed = append(removed, v)
			delete(c.items, k)
		}
	}
	return removed, c.writer.Submit(op)
}

// Evict drops k from memory only.
func (c *WriteThrough[K, V]) Evict(k K) { delete(c.items, k) }

// Range stops when fn returns false.
func (c *WriteThrough[K, V]) Range(fn func(K, V) bool) {
	for k, v := range c.items {
		if !fn(k, v) {
			return
		}
	}
}
