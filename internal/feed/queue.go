package feed

import (
	"sync"

	"github.com/roach88/feedsync/internal/bus"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	EventLoadFirstPage EventType = iota + 1
	EventFirstPageLoaded
	EventPrepareBudget
	EventBudgetLoaded
	EventConsumeBudget
	EventConsumeFinished
	EventRealtimeUpdate
	// EventCall runs an arbitrary function on the loop goroutine.
	EventCall
)

func (t EventType) String() string {
	switch t {
	case EventLoadFirstPage:
		return "load_first_page"
	case EventFirstPageLoaded:
		return "first_page_loaded"
	case EventPrepareBudget:
		return "prepare_budget"
	case EventBudgetLoaded:
		return "budget_loaded"
	case EventConsumeBudget:
		return "consume_budget"
	case EventConsumeFinished:
		return "consume_finished"
	case EventRealtimeUpdate:
		return "realtime_update"
	case EventCall:
		return "call"
	default:
		return "unknown"
	}
}

// Event is one unit of work for a loop.
type Event struct {
	Type   EventType
	Result *FetchResult // first_page_loaded, budget_loaded
	Anchor string       // budget_loaded: anchor ID captured when the fetch started
	Update *bus.Update  // realtime_update
	Call   func()       // call
}

// eventQueue is a thread-safe unbounded FIFO queue for events.
//
// Unbounded so that repository callbacks and bus forwarding never block on
// a busy loop. The signal channel (buffered, size 1) coalesces wakeups and
// is closed by Close to wake the loop for shutdown.
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

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
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

	// Release references held by the backing array
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
