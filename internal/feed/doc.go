// Package feed implements the activity feed synchronization and prefetch
// engine.
//
// A Session keeps one scope's feed (an account, optionally narrowed to a
// token) ordered, deduplicated and ahead of the user's scroll position. It
// reconciles three sources: the repository's persistent cache, paginated
// network fetches, and the realtime update bus.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every session owns a FIFO event queue drained by exactly one goroutine
// (Session.Run). All session state is read and written only there, so no
// two mutations ever interleave and no locks guard the state.
//
// Event Processing Flow:
// 1. Public calls (LoadFirstPage, ConsumeBudget, ...) enqueue events
// 2. Repository callbacks enqueue completion events back onto the same queue
// 3. Realtime updates are forwarded from the bus subscription onto the queue
// 4. Run dequeues one event at a time and routes it to its handler
// 5. UI notifications are posted to the Dispatcher, fire-and-forget
//
// BUDGET STATE MACHINE:
//
//	Idle -> Preparing -> Idle                 prefetch
//	Idle -> Preparing -> Consuming -> Idle    prefetch with a pending consume
//	Idle -> Consuming -> Idle                 consume of a ready budget
//
// A prefetch captures its anchor (the oldest cursor-eligible activity) when
// it starts. If the anchor differs when the page lands, a realtime update
// raced ahead of the fetch; the page is discarded and the prefetch retried.
//
// CANCELLATION:
//
// Clean sets a tombstone checked at every handler entry and disposes the
// realtime subscription. In-flight repository requests are not cancelled;
// they see isCancelled() == true and their callbacks become no-ops.
package feed
