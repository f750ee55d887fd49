// Package queue implements a small bounded, channel-backed queue used to
// apply back-pressure to inbound Taker sessions: once full, new sessions
// are rejected with a "try again later" error rather than blocking or
// growing without bound.
package queue

import "fmt"

// ErrQueueFull is returned by Enqueue when the queue is at capacity.
var ErrQueueFull = fmt.Errorf("queue: at capacity, try again later")

// Bounded is a fixed-capacity FIFO queue of opaque items, safe for
// concurrent producers and a single consumer drain loop.
type Bounded struct {
	items chan interface{}
}

// NewBounded returns a Bounded queue that holds at most capacity items.
func NewBounded(capacity int) *Bounded {
	return &Bounded{items: make(chan interface{}, capacity)}
}

// Enqueue adds item to the queue, or returns ErrQueueFull if it is at
// capacity.
func (b *Bounded) Enqueue(item interface{}) error {
	select {
	case b.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue returns the channel consumers range over to drain the queue.
func (b *Bounded) Dequeue() <-chan interface{} {
	return b.items
}

// Len returns the number of items currently queued.
func (b *Bounded) Len() int {
	return len(b.items)
}
