package queue

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Get when the queue has been closed and
// fully drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded FIFO work queue backed by a Go channel. It provides
// thread-safe blocking put and get operations with support for context
// cancellation. The pipeline uses one queue per direction: a single
// producer feeds the inbound queue and a single consumer (the
// orchestrator) drains it; the outbound queue mirrors that arrangement.
type Queue[T any] struct {
	// ch is the underlying channel used to store items.
	ch chan T

	// closed indicates whether the queue has been closed. Uses atomic
	// operations for lock-free reads.
	closed atomic.Bool

	// mu protects put operations to prevent sending on a closed channel.
	mu sync.RWMutex

	// closeOnce ensures Close() is executed exactly once.
	closeOnce sync.Once
}

// New creates a queue with the given capacity. If capacity is 0 or
// negative, it defaults to 1 so the queue is always buffered.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue[T]{
		ch: make(chan T, capacity),
	}
}

// Put attempts to enqueue an item. It blocks until the item is accepted
// or the context is cancelled. Returns true if the item was enqueued.
func (q *Queue[T]) Put(ctx context.Context, item T) bool {
	// Fast-path rejection when the context is already cancelled. The
	// select below still handles cancellation after this check.
	if ctx.Err() != nil {
		return false
	}

	// Hold the read lock for the entire put to prevent a
	// send-on-closed-channel panic: Close() must take the write lock
	// before closing, and cannot while any read lock is held.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed.Load() {
		return false
	}

	select {
	case q.ch <- item:
		return true

	case <-ctx.Done():
		return false
	}
}

// Get dequeues the next item, blocking until one is available, the
// context is cancelled, or the queue is closed and empty. The returned
// error is the context's error on cancellation, or ErrQueueClosed.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	// Check the context first for deterministic shutdown, rather than
	// racing a ready channel against a cancelled context in the select.
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	select {
	case item, ok := <-q.ch:
		if !ok {
			return zero, ErrQueueClosed
		}

		return item, nil

	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Receive returns an iterator over items in the queue. The iterator
// yields items as they arrive and stops when the context is cancelled or
// the queue is closed and drained.
func (q *Queue[T]) Receive(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, err := q.Get(ctx)
			if err != nil {
				return
			}

			if !yield(item) {
				return
			}
		}
	}
}

// Close closes the queue, preventing further puts. Items already queued
// remain retrievable via Get or Drain. Safe to call multiple times.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		q.closed.Store(true)
		close(q.ch)
	})
}

// IsClosed returns true if the queue has been closed. Lock-free read.
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Drain returns an iterator over any items remaining after Close. If the
// queue is not closed, it returns immediately without yielding.
func (q *Queue[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		if !q.IsClosed() {
			return
		}

		for {
			select {
			case item, ok := <-q.ch:
				if !ok {
					return
				}

				if !yield(item) {
					return
				}

			default:
				return
			}
		}
	}
}

// Len returns the number of items currently buffered.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}
