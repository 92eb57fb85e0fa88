package events

import (
	"errors"
	"sync"
)

// DefaultCapacity is the queue size used by the host
const DefaultCapacity = 16

var (
	// ErrClosed is returned by Push after Close, and by Pop once a closed
	// queue has been emptied
	ErrClosed = errors.New("event queue closed")

	// ErrAllocation is returned by Push for an event that carries no payload
	// for its source; the consumer could not act on it
	ErrAllocation = errors.New("event has no payload")
)

// Queue is a bounded FIFO with any number of producers and one consumer.
// Push blocks while full, Pop blocks while empty. Every state change wakes
// all waiters, so a producer and the consumer can never both sleep on a
// wake-up meant for the other side.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	slots  []Event
	head   int
	count  int
	closed bool

	pushed uint64
	popped uint64
}

// NewQueue creates a queue holding at most capacity events
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{slots: make([]Event, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an event, blocking while the queue is full
func (q *Queue) Push(e Event) error {
	if e.Source == SourceDevice && e.Message == nil {
		return ErrAllocation
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.slots) && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return ErrClosed
	}

	q.slots[(q.head+q.count)%len(q.slots)] = e
	q.count++
	q.pushed++
	q.cond.Broadcast()
	return nil
}

// TryPush appends an event only if there is room
func (q *Queue) TryPush(e Event) (bool, error) {
	if e.Source == SourceDevice && e.Message == nil {
		return false, ErrAllocation
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}
	if q.count == len(q.slots) {
		return false, nil
	}
	q.slots[(q.head+q.count)%len(q.slots)] = e
	q.count++
	q.pushed++
	q.cond.Broadcast()
	return true, nil
}

// Pop removes the oldest event, blocking while the queue is empty. After
// Close the remaining events are still delivered, then ErrClosed.
func (q *Queue) Pop() (Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return Event{}, ErrClosed
	}
	return q.take(), nil
}

func (q *Queue) take() Event {
	e := q.slots[q.head]
	q.slots[q.head] = Event{} // the consumer owns the payload now
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	q.popped++
	q.cond.Broadcast()
	return e
}

// Close wakes every waiter. Blocked producers return ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Drain removes and returns every queued event without blocking
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, 0, q.count)
	for q.count > 0 {
		out = append(out, q.take())
	}
	return out
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return len(q.slots)
}

// Closed reports whether Close has been called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// QueueStats counts traffic through the queue
type QueueStats struct {
	Pushed uint64
	Popped uint64
	Queued int
}

// Stats returns a snapshot of the counters
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{Pushed: q.pushed, Popped: q.popped, Queued: q.count}
}
