package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/feed"
	"github.com/roach88/feedsync/internal/poison"
	"github.com/roach88/feedsync/internal/repository"
	"github.com/roach88/feedsync/internal/store"
)

const (
	stateCleaned     = "cleaned"
	defaultThreshold = "0.01"
	stepTimeout      = 10 * time.Second
	maxSettleRounds  = 1000
	pollInterval     = time.Millisecond
)

// Retries stay short so failure scenarios run fast and deterministically.
var scenarioRetry = repository.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

// Options configures Run. Zero fields fall back to scenario values, then
// to package defaults.
type Options struct {
	// DBPath is the SQLite cache file. Empty runs in memory.
	DBPath string

	// PageSize and MinBudgetSize apply when the scenario leaves them zero.
	PageSize      int
	MinBudgetSize int

	// Tiny applies when the scenario sets no tiny_threshold.
	Tiny *activity.TinyClassifier

	// HideTiny applies when the scenario sets no hide_tiny.
	HideTiny *bool

	// Retry replaces the short retry policy scenarios run with.
	Retry repository.RetryPolicy

	SubscriptionBuffer int
}

// Harness wires one session to a real repository, a SQLite cache and a
// fixture backend, and applies scenario steps to it.
type Harness struct {
	scenario *Scenario
	backend  *repository.FixtureBackend
	repo     *repository.Repository
	ui       *feed.Dispatcher
	manager  *feed.Manager
	session  *feed.Session
	rec      *recorder

	// realtime updates published that reach the session
	published int
	last      feed.Snapshot
}

// Run executes a scenario and returns its trace and assertion outcome.
//
// Each step is applied, then the harness waits until the session, the
// repository and the UI dispatcher are quiet before recording the step.
// An error is returned when the scenario cannot be executed; failed
// assertions are reported in Result.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	path := opts.DBPath
	if path == "" {
		path = ":memory:"
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	history, err := scenario.History.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build history: %w", err)
	}
	tiny, err := scenario.tinyClassifier()
	if err != nil {
		return nil, err
	}
	if scenario.TinyThreshold == "" && opts.Tiny != nil {
		tiny = *opts.Tiny
	}
	pageSize := scenario.PageSize
	if pageSize == 0 {
		pageSize = opts.PageSize
	}
	minBudget := scenario.MinBudgetSize
	if minBudget == 0 {
		minBudget = opts.MinBudgetSize
	}
	retry := opts.Retry
	if retry == (repository.RetryPolicy{}) {
		retry = scenarioRetry
	}

	backend := repository.NewFixtureBackend()
	backend.SetHistory(scenario.Account, history)

	updates := bus.New()
	defer updates.Close()

	repo := repository.New(st, backend, updates, repository.Options{
		PageSize: pageSize,
		Retry:    retry,
	})
	defer repo.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ui := feed.NewDispatcher()
	go func() {
		_ = ui.Run(ctx)
	}()

	hide := false
	if opts.HideTiny != nil {
		hide = *opts.HideTiny
	}
	if scenario.HideTiny != nil {
		hide = *scenario.HideTiny
	}

	rec := &recorder{}
	manager := feed.NewManager(ctx, repo, updates, poison.NewDetector(), ui,
		feed.WithMinBudgetSize(minBudget),
		feed.WithHideTiny(func() bool { return hide }, tiny),
		feed.WithSubscriptionBuffer(opts.SubscriptionBuffer),
	)
	defer manager.Shutdown()
	scope := feed.Scope{AccountID: scenario.Account, Slug: scenario.Slug}
	session := manager.Open(scope, rec)

	h := &Harness{
		scenario: scenario,
		manager:  manager,
		backend:  backend,
		repo:     repo,
		ui:       ui,
		session:  session,
		rec:      rec,
	}

	slog.Debug("scenario starting", "scenario", scenario.Name, "steps", len(scenario.Steps))

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.runStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		result.Trace = append(result.Trace, trace)
	}

	result.Final = h.final()
	for _, assertion := range scenario.Assertions {
		if err := evaluateAssertion(result.Final, assertion); err != nil {
			result.AddError(err.Error())
		}
	}

	manager.Shutdown()

	slog.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, index int, step Step) (TraceStep, error) {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	if err := h.execute(ctx, step); err != nil {
		return TraceStep{}, err
	}
	if err := h.settle(ctx); err != nil {
		return TraceStep{}, err
	}
	return h.capture(ctx, index, step)
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	account := h.scenario.Account

	switch step.Action {
	case ActionLoadFirstPage:
		h.session.LoadFirstPage()

	case ActionPrepare:
		h.session.PrepareBudget()

	case ActionConsume:
		h.session.ConsumeBudget()

	case ActionRealtime:
		kind, _ := bus.ParseUpdateKind(step.Kind)
		activities, err := Activities(step.Activities)
		if err != nil {
			return err
		}
		if step.Account != "" {
			account = step.Account
		}
		if err := h.repo.Ingest(ctx, kind, account, step.Slug, activities, step.LoadedAll); err != nil {
			return err
		}
		h.delivered()

	case ActionAddLocal:
		a, err := step.Activities[0].Activity()
		if err != nil {
			return err
		}
		if _, err := h.repo.AddLocal(account, a); err != nil {
			return err
		}
		h.delivered()

	case ActionRemoveLocal:
		existed := slices.ContainsFunc(h.repo.GetLocalAndPending(account, ""), func(a activity.Activity) bool {
			return a.ID == step.ID
		})
		if err := h.repo.RemoveLocal(account, step.ID); err != nil {
			return err
		}
		if existed {
			h.delivered()
		}

	case ActionBackendAppend:
		activities, err := Activities(step.Activities)
		if err != nil {
			return err
		}
		h.backend.Append(account, activities...)

	case ActionBackendFail:
		h.backend.FailNext(step.Count)

	case ActionClean:
		h.manager.Close(h.session.Scope())

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// delivered counts a bus publish the session is subscribed to.
func (h *Harness) delivered() {
	if !h.session.IsCleaned() {
		h.published++
	}
}

// settle waits until no fetch is in flight, every queued event and every
// callback it caused has run, and no new fetch started meanwhile.
func (h *Harness) settle(ctx context.Context) error {
	for range maxSettleRounds {
		if h.session.IsCleaned() {
			h.repo.Wait()
			return h.ui.Flush(ctx)
		}

		if err := h.waitRealtime(ctx); err != nil {
			return err
		}

		started := h.repo.Started()
		if err := h.session.Flush(ctx); err != nil {
			return err
		}
		h.repo.Wait()
		if err := h.session.Flush(ctx); err != nil {
			return err
		}
		if err := h.ui.Flush(ctx); err != nil {
			return err
		}
		if h.repo.Started() == started {
			return nil
		}
	}
	return fmt.Errorf("session did not settle after %d rounds", maxSettleRounds)
}

// waitRealtime blocks until the session has handled every update published
// to it.
func (h *Harness) waitRealtime(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, err := h.session.Inspect(ctx)
		if err != nil {
			return err
		}
		if snap.RealtimeEvents >= h.published {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for realtime delivery: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (h *Harness) capture(ctx context.Context, index int, step Step) (TraceStep, error) {
	state := stateCleaned
	if !h.session.IsCleaned() {
		snap, err := h.session.Inspect(ctx)
		if err != nil {
			return TraceStep{}, err
		}
		h.last = snap
		state = snap.BudgetState.String()
	}

	return TraceStep{
		Step:          index + 1,
		Action:        step.Action,
		Notifications: h.rec.drain(),
		Showing:       activity.IDs(h.session.Showing()),
		AllCount:      len(h.last.AllIDs),
		BudgetCount:   len(h.last.BudgetIDs),
		LoadedAll:     h.last.LoadedAll,
		State:         state,
		BackendCalls:  h.backend.Calls(),
	}, nil
}

func (h *Harness) final() FinalState {
	state := h.last.BudgetState.String()
	if h.session.IsCleaned() {
		state = stateCleaned
	}
	return FinalState{
		Showing:       activity.IDs(h.session.Showing()),
		AllIDs:        h.last.AllIDs,
		BudgetIDs:     h.last.BudgetIDs,
		LoadedAll:     h.last.LoadedAll,
		State:         state,
		Notifications: h.rec.all(),
		BackendCalls:  h.backend.Calls(),
	}
}

func (s *Scenario) tinyClassifier() (activity.TinyClassifier, error) {
	threshold := s.TinyThreshold
	if threshold == "" {
		threshold = defaultThreshold
	}
	d, err := decimal.NewFromString(threshold)
	if err != nil {
		return activity.TinyClassifier{}, fmt.Errorf("tiny_threshold: %w", err)
	}
	return activity.TinyClassifier{Default: d}, nil
}

// LoadDetector records every incoming transfer of the scenario history in
// a fresh detector.
func LoadDetector(scenario *Scenario) (*poison.Detector, error) {
	history, err := scenario.History.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build history: %w", err)
	}
	d := poison.NewDetector()
	d.Observe(scenario.Account, history)
	return d, nil
}

// recorder is the session delegate. It runs on the dispatcher goroutine and
// is read from the harness goroutine.
type recorder struct {
	mu      sync.Mutex
	pending []string
	history []string
}

func (r *recorder) OnDataLoaded(isUpdate bool) {
	if isUpdate {
		r.add(NotifyDataUpdated)
		return
	}
	r.add(NotifyDataLoaded)
}

func (r *recorder) OnCacheMiss() {
	r.add(NotifyCacheMiss)
}

func (r *recorder) OnHistoryFullyLoaded() {
	r.add(NotifyFullyLoaded)
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, name)
	r.history = append(r.history, name)
}

// drain returns the notifications since the last drain.
func (r *recorder) drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	if out == nil {
		out = []string{}
	}
	return out
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}
