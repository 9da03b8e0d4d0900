// Package queue provides the unbounded FIFO behind the controller mailbox.
package queue

import (
	"sync"
)

// Queue is an unbounded, thread-safe FIFO. Producers never block.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// TryPop removes the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Drain removes and returns every queued item, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}
