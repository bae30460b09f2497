/*
Copyright 2024 Tim St. Pierre
Unbounded FIFO between a producer and a consumer
*/
package mailbox

import (
	"context"
	"sync"
)

// Queue keeps every value pushed, in order, for a consumer that drains
// them in batches. Unlike Cell nothing is ever overwritten.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
	closed  bool
	notify  chan struct{}
	done    chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends v. It never blocks.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Take waits until at least one value is pending and returns all of them,
// oldest first. Values pushed before Close are still delivered.
func (q *Queue[T]) Take(ctx context.Context) ([]T, error) {
	for {
		q.mu.Lock()
		vs, closed := q.pending, q.closed
		q.pending = nil
		q.mu.Unlock()
		if len(vs) > 0 {
			return vs, nil
		}
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close wakes any waiting Take and rejects further Push calls.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
