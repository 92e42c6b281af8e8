package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/poison"
)

// DefaultMinBudgetSize is the number of visible activities prefetched ahead
// of the user's scroll position.
const DefaultMinBudgetSize = 60

// Scope identifies one feed. An empty Slug is the all-activities feed.
type Scope struct {
	AccountID string
	Slug      string
}

func (s Scope) String() string {
	if s.Slug == "" {
		return s.AccountID
	}
	return s.AccountID + "/" + s.Slug
}

// BudgetState is the prefetch state machine position.
type BudgetState int

const (
	Idle BudgetState = iota
	Preparing
	Consuming
)

func (s BudgetState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Consuming:
		return "consuming"
	default:
		return fmt.Sprintf("BudgetState(%d)", int(s))
	}
}

// Session keeps one scope's feed synchronized.
//
// Fields below the loop marker are owned by the Run goroutine.
type Session struct {
	id        string
	scope     Scope
	repo      Repository
	detector  *poison.Detector
	delegate  Delegate
	ui        *Dispatcher
	sub       *bus.Subscription
	subBuffer int
	queue     *eventQueue
	filter    activity.Filter
	minBudget int

	cleared atomic.Bool
	showing atomic.Pointer[[]activity.Activity]

	// loop-owned
	allIDs           []string
	budgetIDs        []string
	cursor           *activity.Activity
	loadedAll        bool
	budgetState      BudgetState
	consumeRequested bool
	historyNotified  bool
	realtimeEvents   int
}

// Option configures a Session.
type Option func(*Session)

// WithMinBudgetSize overrides DefaultMinBudgetSize.
func WithMinBudgetSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.minBudget = n
		}
	}
}

// WithHideTiny installs the tiny-transfer preference and thresholds.
func WithHideTiny(hide func() bool, tiny activity.TinyClassifier) Option {
	return func(s *Session) {
		s.filter.HideTiny = hide
		s.filter.Tiny = tiny
	}
}

// WithDispatcher routes delegate calls through ui.
func WithDispatcher(ui *Dispatcher) Option {
	return func(s *Session) {
		s.ui = ui
	}
}

// WithSubscriptionBuffer sets the realtime subscription channel size.
func WithSubscriptionBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.subBuffer = n
		}
	}
}

// New creates a session for scope and subscribes it to updates. Call Run to
// start processing. A nil delegate ignores notifications; a nil dispatcher
// gets a private one that Run drives.
func New(scope Scope, repo Repository, updates *bus.Bus, detector *poison.Detector, delegate Delegate, opts ...Option) *Session {
	if delegate == nil {
		delegate = NopDelegate{}
	}
	if detector == nil {
		detector = poison.NewDetector()
	}

	s := &Session{
		id:        uuid.Must(uuid.NewV7()).String(),
		scope:     scope,
		repo:      repo,
		detector:  detector,
		delegate:  delegate,
		subBuffer: bus.DefaultBuffer,
		queue:     newEventQueue(),
		minBudget: DefaultMinBudgetSize,
		filter: activity.Filter{
			AccountID: scope.AccountID,
			Poison:    detector,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	empty := []activity.Activity{}
	s.showing.Store(&empty)
	s.sub = updates.Subscribe(s.subBuffer)
	return s
}

// ID returns the session's log identifier.
func (s *Session) ID() string {
	return s.id
}

// Scope returns the feed this session serves.
func (s *Session) Scope() Scope {
	return s.scope
}

// Run processes events until ctx is cancelled or the session is cleaned.
// The realtime subscription is disposed when Run returns.
// CRITICAL: exactly one goroutine may call Run.
func (s *Session) Run(ctx context.Context) error {
	log := s.logger()
	log.Info("session starting")

	ownUI := s.ui == nil
	if ownUI {
		s.ui = NewDispatcher()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// A stopped loop must not stay subscribed: Publish waits on full buffers.
	defer s.sub.Close()

	if ownUI {
		go func() {
			_ = s.ui.Run(ctx)
		}()
	}
	go s.forward(ctx)

	err := runLoop(ctx, s.queue, s.processEvent)
	if err == nil {
		log.Info("session stopping: cleaned")
	} else {
		log.Info("session stopping: context cancelled")
	}
	return err
}

// forward moves realtime updates from the subscription onto the queue.
func (s *Session) forward(ctx context.Context) {
	for {
		select {
		case u := <-s.sub.C():
			if !s.queue.Enqueue(Event{Type: EventRealtimeUpdate, Update: &u}) {
				return
			}
		case <-s.sub.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// Clean tombstones the session. Every later callback is a no-op, the
// subscription is disposed and Run returns once the queue drains.
func (s *Session) Clean() {
	if s.cleared.Swap(true) {
		return
	}
	s.sub.Close()
	s.queue.Close()
	s.logger().Debug("session cleaned")
}

// IsCleaned reports whether Clean was called.
func (s *Session) IsCleaned() bool {
	return s.cleared.Load()
}

// LoadFirstPage fetches the newest page of the scope.
func (s *Session) LoadFirstPage() {
	s.queue.Enqueue(Event{Type: EventLoadFirstPage})
}

// PrepareBudget starts a prefetch if one is needed.
func (s *Session) PrepareBudget() {
	s.queue.Enqueue(Event{Type: EventPrepareBudget})
}

// ConsumeBudget moves prefetched activities into the visible list, or
// arranges for that to happen once the running prefetch lands.
func (s *Session) ConsumeBudget() {
	s.queue.Enqueue(Event{Type: EventConsumeBudget})
}

// ProcessRealtimeUpdate feeds u through the loop as if it arrived on the bus.
func (s *Session) ProcessRealtimeUpdate(u bus.Update) {
	s.queue.Enqueue(Event{Type: EventRealtimeUpdate, Update: &u})
}

// Showing returns the visible activities as of the last recompute.
// Safe from any goroutine.
func (s *Session) Showing() []activity.Activity {
	return slices.Clone(*s.showing.Load())
}

// Snapshot is a copy of the loop-owned state.
type Snapshot struct {
	AllIDs           []string
	BudgetIDs        []string
	Cursor           *activity.Activity
	LoadedAll        bool
	BudgetState      BudgetState
	ConsumeRequested bool
	// RealtimeEvents counts realtime updates handled, ignored ones included.
	RealtimeEvents int
}

// Inspect copies the loop-owned state from the loop goroutine.
func (s *Session) Inspect(ctx context.Context) (Snapshot, error) {
	out := make(chan Snapshot, 1)
	if !s.queue.Enqueue(Event{Type: EventCall, Call: func() { out <- s.snapshot() }}) {
		return Snapshot{}, ErrStopped
	}
	select {
	case snap := <-out:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Flush blocks until every event queued so far, and every event those
// handlers enqueued, has been processed.
func (s *Session) Flush(ctx context.Context) error {
	return flushQueue(ctx, s.queue)
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		AllIDs:           slices.Clone(s.allIDs),
		BudgetIDs:        slices.Clone(s.budgetIDs),
		LoadedAll:        s.loadedAll,
		BudgetState:      s.budgetState,
		ConsumeRequested: s.consumeRequested,
		RealtimeEvents:   s.realtimeEvents,
	}
	if s.cursor != nil {
		c := *s.cursor
		snap.Cursor = &c
	}
	return snap
}

// processEvent routes an event to its handler.
// CRITICAL: called only from the Run goroutine.
func (s *Session) processEvent(e Event) error {
	if e.Type == EventCall {
		if e.Call != nil {
			e.Call()
		}
		return nil
	}
	if s.cleared.Load() {
		return nil
	}

	switch e.Type {
	case EventLoadFirstPage:
		s.loadFirstPage()
	case EventFirstPageLoaded:
		if e.Result == nil {
			return fmt.Errorf("first page event missing result")
		}
		s.handleFirstPage(*e.Result)
	case EventPrepareBudget:
		s.prepareBudget()
	case EventBudgetLoaded:
		if e.Result == nil {
			return fmt.Errorf("budget event missing result")
		}
		s.handleBudgetLoaded(*e.Result, e.Anchor)
	case EventConsumeBudget:
		s.consumeBudget()
	case EventConsumeFinished:
		s.budgetState = Idle
		s.settle()
	case EventRealtimeUpdate:
		if e.Update == nil {
			return fmt.Errorf("realtime event missing update")
		}
		return s.handleRealtime(*e.Update)
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
	return nil
}

func (s *Session) logger() *slog.Logger {
	return slog.With(
		"session_id", s.id,
		"account_id", s.scope.AccountID,
		"slug", s.scope.Slug,
	)
}
