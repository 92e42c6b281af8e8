package feed

import (
	"context"
	"errors"
	"log/slog"
)

// ErrStopped is returned when posting to a stopped loop.
var ErrStopped = errors.New("feed: loop stopped")

// Dispatcher runs posted functions one at a time on its own goroutine.
// It stands in for the UI thread: every Delegate call goes through it.
type Dispatcher struct {
	queue *eventQueue
}

// NewDispatcher creates a dispatcher. Call Run to start it.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{queue: newEventQueue()}
}

// Post schedules fn. Returns false if the dispatcher is stopped.
func (d *Dispatcher) Post(fn func()) bool {
	return d.queue.Enqueue(Event{Type: EventCall, Call: fn})
}

// Run drains posted functions until ctx is cancelled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	return runLoop(ctx, d.queue, func(e Event) error {
		if e.Call != nil {
			e.Call()
		}
		return nil
	})
}

// Flush blocks until everything posted before the call has run.
func (d *Dispatcher) Flush(ctx context.Context) error {
	return flushQueue(ctx, d.queue)
}

// Stop closes the dispatcher. Functions already posted still run.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// runLoop is the single-consumer drain shared by sessions and the
// dispatcher. A failing handler is logged and the loop continues.
func runLoop(ctx context.Context, q *eventQueue, handle func(Event) error) error {
	for {
		event, ok := q.TryDequeue()
		if ok {
			if err := handle(event); err != nil {
				slog.Error("event processing failed",
					"event_type", event.Type.String(),
					"error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			q.Close()
			return ctx.Err()

		case <-q.Wait():
			// The signal channel is closed with the queue, so this fires
			// repeatedly once closed; stop when nothing is left.
			if q.Closed() && q.Len() == 0 {
				return nil
			}
		}
	}
}

// flushQueue enqueues barriers until one runs with nothing queued behind it.
// The emptiness check runs on the loop goroutine, where no handler can be
// in flight.
func flushQueue(ctx context.Context, q *eventQueue) error {
	for {
		empty := make(chan bool, 1)
		if !q.Enqueue(Event{Type: EventCall, Call: func() { empty <- q.Len() == 0 }}) {
			return ErrStopped
		}
		select {
		case ok := <-empty:
			if ok {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
