package realtime

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO safe for one reader and many writers.
type Queue[V any] struct {
	mu    sync.Mutex
	items []V
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[V any]() *Queue[V] {
	return &Queue[V]{ready: make(chan struct{}, 1)}
}

// Push appends v and wakes a waiting reader. It never blocks.
func (q *Queue[V]) Push(v V) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop removes the oldest item without waiting.
func (q *Queue[V]) TryPop() (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero V
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Len returns the number of buffered items.
func (q *Queue[V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait returns the oldest item, waiting up to timeout for one to arrive.
// ok is false on timeout or when ctx is done.
func (q *Queue[V]) Wait(ctx context.Context, timeout time.Duration) (v V, ok bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return v, false
		case <-timer.C:
			return q.TryPop()
		case <-q.ready:
			// The signal may be stale if an earlier TryPop already drained the item.
			if v, ok := q.TryPop(); ok {
				return v, true
			}
		}
	}
}
