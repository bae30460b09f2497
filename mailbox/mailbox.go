/*
Copyright 2024 Tim St. Pierre
Single slot mailbox between a producer and a consumer
*/

// Package mailbox hands values from one producer, such as an interrupt or
// bus callback, to one consumer loop. A new value overwrites one that has
// not been taken yet.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("mailbox: closed")

type Cell[T any] struct {
	mu     sync.Mutex
	v      T
	full   bool
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func New[T any]() *Cell[T] {
	return &Cell[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish stores v, replacing any value not yet taken. It never blocks.
func (c *Cell[T]) Publish(v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.v, c.full = v, true
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryTake returns the pending value, if any.
func (c *Cell[T]) TryTake() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.take()
}

func (c *Cell[T]) take() (T, bool) {
	var zero T
	if !c.full {
		return zero, false
	}
	v := c.v
	c.v, c.full = zero, false
	return v, true
}

// Take waits for a value. A value published before Close is still
// delivered; after that Take returns ErrClosed.
func (c *Cell[T]) Take(ctx context.Context) (T, error) {
	for {
		c.mu.Lock()
		v, ok := c.take()
		closed := c.closed
		c.mu.Unlock()
		if ok {
			return v, nil
		}
		if closed {
			return v, ErrClosed
		}

		select {
		case <-c.notify:
		case <-c.done:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Close wakes any waiting Take and rejects further Publish calls.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
