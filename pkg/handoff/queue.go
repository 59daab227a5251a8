// Package handoff provides the ordered, non-blocking queue that connects a
// producer goroutine to a consumer running in another execution context.
//
// Push never blocks the producer. Drain never blocks the consumer: it returns
// whatever is queued, possibly nothing. Items come out in push order.
package handoff

import (
	"sync"
	"sync/atomic"
)

// Queue is a FIFO hand-off queue. The zero value is not usable; call New or NewBounded.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int // 0 = unbounded

	ready   chan struct{}
	dropped atomic.Uint64
	pushed  atomic.Uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// NewBounded creates a queue holding at most limit items.
// When full, Push discards the oldest queued item to make room.
func NewBounded[T any](limit int) *Queue[T] {
	q := New[T]()
	if limit > 0 {
		q.limit = limit
	}
	return q
}

// Push appends v. It never blocks.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	if q.limit > 0 && len(q.items) >= q.limit {
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.dropped.Add(1)
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.pushed.Add(1)

	select {
	case q.ready <- struct{}{}:
	default:
		// Consumer already has a pending wake-up
	}
}

// Drain removes and returns every queued item in push order.
// It returns nil immediately if the queue is empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Ready returns a channel that receives a value after one or more pushes.
// Readers should Drain after every receive; several pushes may share one signal.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items a bounded queue has discarded.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Pushed returns the total number of pushes.
func (q *Queue[T]) Pushed() uint64 {
	return q.pushed.Load()
}
