// Package queue implements the unbounded FIFO queues that decouple
// application producers and consumers from the link I/O loops.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Put after Close, and by Get once a closed queue
// has been drained.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded, goroutine-safe FIFO. Closing it plays the role of a
// sentinel value: consumers receive every item put before Close, then
// ErrClosed.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	notify    chan struct{} // capacity 1, "items may be available"
	done      chan struct{} // closed by Close
	closeOnce sync.Once
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put appends v. It never blocks.
func (q *Queue[T]) Put(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Get removes and returns the oldest item, blocking until one is available,
// the queue is closed and drained, or ctx is cancelled.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	for {
		if v, ok, closed := q.pop(); ok {
			return v, nil
		} else if closed {
			return v, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryGet removes and returns the oldest item without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	v, ok, _ := q.pop()
	return v, ok
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new items. Items already queued remain available.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

func (q *Queue[T]) pop() (v T, ok bool, closed bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		closed = q.closed
		q.mu.Unlock()
		return v, false, closed
	}

	var zero T
	v = q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	more := len(q.items) > 0
	q.mu.Unlock()

	// Pass the wake-up on so a second waiting consumer is not stranded.
	if more {
		q.signal()
	}
	return v, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
