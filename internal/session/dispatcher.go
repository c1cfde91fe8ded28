package session

import (
	"context"
	"sync"
)

// eventQueue is a thread-safe, unbounded FIFO of input events.
//
// The signal channel (buffered, size 1) coalesces wake-ups so the Run loop
// can wait on it alongside ctx.Done().
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds e to the back of the queue. Returns false once closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.events) == 0
}

func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Dispatcher serializes events from any number of goroutines into a single
// session.
//
// Thread-safety model:
//   - Enqueue(), Close(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine; it is the only
//     caller of the session's event methods
type Dispatcher struct {
	session *Session
	queue   *eventQueue
}

// NewDispatcher creates a dispatcher feeding s.
func NewDispatcher(s *Session) *Dispatcher {
	return &Dispatcher{session: s, queue: newEventQueue()}
}

// Enqueue submits e. Returns false after Close.
func (d *Dispatcher) Enqueue(e Event) bool {
	return d.queue.Enqueue(e)
}

// Close stops accepting events. Run returns once the backlog is applied.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// Len returns the number of pending events.
func (d *Dispatcher) Len() int {
	return d.queue.Len()
}

// Run applies events one at a time until the dispatcher is closed and
// drained, or ctx is cancelled.
//
// A failing event is logged and processing continues: one bad Complete
// must not take down the input loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if e, ok := d.queue.TryDequeue(); ok {
			if err := d.session.Apply(e); err != nil {
				d.session.logger.Error("event failed", "event", e.String(), "error", err)
			}
			continue
		}
		if d.queue.Drained() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.queue.Wait():
		}
	}
}
