// File: pool/mpscqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventQueue is the multi-producer, single-consumer queue of Poller
// Events described by the spec's events model: many goroutines
// (Acceptor, workers returning a socket for re-registration, the
// timeout sweep) push events; only the Poller goroutine drains them.
// Generalizes the teacher's NUMA executor's task queue
// (internal/concurrency/executor.go), which drives the same
// eapache/queue.Queue from a busy-polling worker with no lock at all -
// fine for that package's single-writer discipline, unsafe for ours
// where Enqueue is called from many goroutines at once. We add the
// mutex that file is missing and a condition variable so the consumer
// can block instead of spinning.
package pool

import (
	"sync"

	"github.com/eapache/queue"
)

// EventQueue is a bounded-memory, unbounded-length FIFO safe for many
// concurrent producers and a single consumer.
type EventQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

// NewEventQueue creates an empty queue.
func NewEventQueue[T any]() *EventQueue[T] {
	eq := &EventQueue[T]{q: queue.New()}
	eq.cond = sync.NewCond(&eq.mu)
	return eq
}

// Push enqueues v and wakes a blocked consumer. Push on a closed queue
// is a no-op, matching the Poller's drain-then-exit shutdown sequence.
func (eq *EventQueue[T]) Push(v T) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if eq.closed {
		return
	}
	eq.q.Add(v)
	eq.cond.Signal()
}

// TryPop returns the oldest item without blocking. ok is false if the
// queue is currently empty; this is the path the Poller takes after
// epoll_wait returns events of its own, to drain any events queued
// meanwhile without paying for a wakeup.
func (eq *EventQueue[T]) TryPop() (v T, ok bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	if eq.q.Length() == 0 {
		return v, false
	}
	item := eq.q.Remove()
	return item.(T), true
}

// Pop blocks until an item is available or the queue is closed. ok is
// false only on close with nothing left to drain.
func (eq *EventQueue[T]) Pop() (v T, ok bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	for eq.q.Length() == 0 && !eq.closed {
		eq.cond.Wait()
	}
	if eq.q.Length() == 0 {
		return v, false
	}
	item := eq.q.Remove()
	return item.(T), true
}

// Len reports the number of items currently queued.
func (eq *EventQueue[T]) Len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return eq.q.Length()
}

// Close wakes any blocked Pop and marks the queue closed. Subsequent
// Push calls are dropped; Pop continues to drain whatever was already
// queued before returning ok=false.
func (eq *EventQueue[T]) Close() {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	eq.closed = true
	eq.cond.Broadcast()
}
