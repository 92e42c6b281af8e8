// Package bus fans realtime activity updates out to feed sessions.
//
// Each subscriber gets its own buffered channel and an explicit handle;
// disposing the handle is the only way to stop delivery. There is no
// observer registry to forget to unregister from.
package bus

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/feedsync/internal/activity"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("bus closed")

// UpdateKind classifies a realtime update.
type UpdateKind int

const (
	// KindInitialize is a full resync, e.g. after an account switch.
	KindInitialize UpdateKind = iota + 1
	// KindUpdate carries new or changed activities at the head of history.
	KindUpdate
	// KindPaginate carries an older page fetched by another consumer.
	KindPaginate
)

func (k UpdateKind) String() string {
	switch k {
	case KindInitialize:
		return "initialize"
	case KindUpdate:
		return "update"
	case KindPaginate:
		return "paginate"
	default:
		return "unknown"
	}
}

// ParseUpdateKind is the inverse of UpdateKind.String.
func ParseUpdateKind(s string) (UpdateKind, bool) {
	switch s {
	case "initialize":
		return KindInitialize, true
	case "update":
		return KindUpdate, true
	case "paginate":
		return KindPaginate, true
	}
	return 0, false
}

// Update is one realtime event.
type Update struct {
	Kind        UpdateKind
	AccountID   string
	Slug        string // scope the page was fetched for (paginate only)
	Activities  []activity.Activity
	IsFromCache bool
	LoadedAll   *bool // set by paginate when the source knows
}

// DefaultBuffer is the subscription channel capacity used when none is given.
const DefaultBuffer = 64

// Bus is an in-process publish/subscribe hub.
//
// Thread-safety: all methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscription is a handle on one subscriber's delivery channel.
type Subscription struct {
	id   string
	bus  *Bus
	ch   chan Update
	done chan struct{}
	once sync.Once
}

// Subscribe registers a new subscriber with the given channel capacity
// (DefaultBuffer when <= 0). Subscribing to a closed bus returns an already
// disposed subscription.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{
		id:   uuid.Must(uuid.NewV7()).String(),
		bus:  b,
		ch:   make(chan Update, buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.dispose()
		return s
	}
	b.subs[s.id] = s
	return s
}

// Publish delivers u to every live subscriber. Delivery waits on a full
// subscriber buffer rather than dropping: a lost update would leave a feed
// silently stale. A subscriber disposed mid-delivery is skipped.
func (b *Bus) Publish(u Update) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- u:
		case <-s.done:
		}
	}

	slog.Debug("realtime update published",
		"kind", u.Kind.String(),
		"account_id", u.AccountID,
		"activities", len(u.Activities),
		"subscribers", len(subs),
	)
	return nil
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disposes every subscription. Publish fails afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.dispose()
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the delivery channel.
func (s *Subscription) C() <-chan Update {
	return s.ch
}

// Done is closed once the subscription is disposed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	s.dispose()
}

func (s *Subscription) dispose() {
	s.once.Do(func() { close(s.done) })
}
