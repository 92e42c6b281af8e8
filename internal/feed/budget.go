package feed

import (
	"slices"

	"github.com/roach88/feedsync/internal/activity"
)

func (s *Session) loadFirstPage() {
	s.logger().Debug("loading first page")
	s.repo.FetchPage(s.scope.AccountID, s.scope.Slug, nil, s.cleared.Load, func(res FetchResult) {
		s.queue.Enqueue(Event{Type: EventFirstPageLoaded, Result: &res})
	})
}

func (s *Session) handleFirstPage(res FetchResult) {
	if len(res.Activities) == 0 && !res.LoadedAll {
		s.logger().Debug("first page empty, cache miss")
		s.notify(func(d Delegate) { d.OnCacheMiss() })
		return
	}

	s.detector.Observe(s.scope.AccountID, res.Activities)
	lookup := s.lookupWith(res.Activities)

	page := s.scoped(res.Activities)
	if oldest, ok := activity.Oldest(page); ok {
		s.advanceCursor(oldest)
	}
	s.allIDs = activity.MergeUnbounded(activity.IDs(page), s.allIDs, lookup)
	s.budgetIDs = without(s.budgetIDs, s.allIDs)

	s.publish(false)
	if res.LoadedAll {
		s.markLoadedAll()
	}

	if !s.loadedAll {
		s.prepareBudget()
	}
}

// prepareBudget starts a prefetch below the current anchor. Reports whether
// a fetch was issued.
func (s *Session) prepareBudget() bool {
	if s.budgetState != Idle || s.loadedAll {
		return false
	}
	if s.visibleBudget() >= s.minBudget {
		return false
	}

	anchor, ok := s.anchor()
	if !ok {
		s.logger().Debug("no anchor, prefetch skipped")
		return false
	}

	before := anchor
	if s.cursor != nil {
		before = *s.cursor
	}

	s.budgetState = Preparing
	captured := anchor.ID
	s.logger().Debug("preparing budget",
		"anchor", captured,
		"before", before.ID,
		"budget", len(s.budgetIDs))

	s.repo.FetchPage(s.scope.AccountID, s.scope.Slug, &before, s.cleared.Load, func(res FetchResult) {
		s.queue.Enqueue(Event{Type: EventBudgetLoaded, Result: &res, Anchor: captured})
	})
	return true
}

func (s *Session) handleBudgetLoaded(res FetchResult, captured string) {
	log := s.logger()
	if s.budgetState != Preparing {
		log.Warn("budget page outside prepare", "state", s.budgetState.String())
		return
	}

	if current, ok := s.anchor(); !ok || current.ID != captured {
		log.Debug("prefetch invalidated", "captured", captured, "current", current.ID)
		s.budgetState = Idle
		s.settle()
		return
	}

	s.detector.Observe(s.scope.AccountID, res.Activities)
	lookup := s.lookupWith(res.Activities)

	page := s.scoped(res.Activities)
	moved := false
	if oldest, ok := activity.Oldest(page); ok {
		moved = s.advanceCursor(oldest)
	}

	known := make(map[string]struct{}, len(s.allIDs)+len(s.budgetIDs))
	for _, id := range s.allIDs {
		known[id] = struct{}{}
	}
	for _, id := range s.budgetIDs {
		known[id] = struct{}{}
	}
	fresh := make([]string, 0, len(page))
	for _, a := range page {
		if _, ok := known[a.ID]; !ok {
			fresh = append(fresh, a.ID)
		}
	}
	s.budgetIDs = activity.MergeUnbounded(fresh, s.budgetIDs, lookup)

	if res.LoadedAll {
		s.markLoadedAll()
	}
	if !res.IsFromCache {
		s.persist(true)
	}

	s.budgetState = Idle
	log.Debug("budget loaded",
		"fresh", len(fresh),
		"budget", len(s.budgetIDs),
		"loaded_all", s.loadedAll)

	if len(fresh) == 0 && !moved && !s.loadedAll {
		// Same page again; retrying would spin.
		log.Warn("prefetch made no progress")
		s.consumeRequested = false
		return
	}
	s.settle()
}

// settle runs once the state machine is back to Idle: a consume requested
// while busy goes first, then the budget is topped up.
func (s *Session) settle() {
	if s.consumeRequested {
		s.consumeRequested = false
		s.consumeBudget()
		if s.budgetState != Idle {
			return
		}
	}
	s.prepareBudget()
}

func (s *Session) consumeBudget() {
	if s.budgetState != Idle {
		s.consumeRequested = true
		return
	}
	if len(s.budgetIDs) > 0 {
		s.consume()
		return
	}
	if !s.loadedAll && s.prepareBudget() {
		s.consumeRequested = true
	}
}

func (s *Session) consume() {
	s.budgetState = Consuming
	lookup := s.lookupWith(nil)

	budget := without(s.budgetIDs, s.allIDs)
	if len(budget) > 0 {
		if len(s.allIDs) == 0 || sortsAfter(s.allIDs[len(s.allIDs)-1], budget[0], lookup) {
			s.allIDs = append(s.allIDs, budget...)
		} else {
			s.allIDs = activity.MergeUnbounded(budget, s.allIDs, lookup)
		}
	}
	s.budgetIDs = nil

	s.logger().Debug("budget consumed", "moved", len(budget), "all", len(s.allIDs))
	s.publish(false)
	s.queue.Enqueue(Event{Type: EventConsumeFinished})
}

// anchor is the oldest cursor-eligible activity, scanning the budget first.
func (s *Session) anchor() (activity.Activity, bool) {
	lookup := s.lookupWith(nil)
	if a, ok := activity.OldestOf(s.budgetIDs, lookup); ok {
		return a, true
	}
	return activity.OldestOf(s.allIDs, lookup)
}

// advanceCursor moves the cursor to a when a is older. The cursor never
// moves toward newer activities.
func (s *Session) advanceCursor(a activity.Activity) bool {
	if s.cursor != nil && activity.Compare(a, *s.cursor) <= 0 {
		return false
	}
	c := a
	s.cursor = &c
	return true
}

func (s *Session) markLoadedAll() {
	s.loadedAll = true
	if s.historyNotified {
		return
	}
	s.historyNotified = true
	s.logger().Debug("history fully loaded")
	s.notify(func(d Delegate) { d.OnHistoryFullyLoaded() })
}

// visibleBudget counts budget activities that pass the filter.
func (s *Session) visibleBudget() int {
	n := 0
	for _, id := range s.budgetIDs {
		a, ok := s.repo.GetActivity(s.scope.AccountID, id)
		if ok && s.filter.Keep(a, true, s.scope.Slug) {
			n++
		}
	}
	return n
}

// scoped returns the cursor-eligible activities of the session's scope,
// sorted newest first.
func (s *Session) scoped(activities []activity.Activity) []activity.Activity {
	out := make([]activity.Activity, 0, len(activities))
	for _, a := range activities {
		if a.IsTimestampEligible() && a.BelongsTo(s.scope.Slug) {
			out = append(out, a)
		}
	}
	activity.Sort(out)
	return out
}

// lookupWith resolves IDs against page first, then the repository.
func (s *Session) lookupWith(page []activity.Activity) activity.Lookup {
	overlay := make(map[string]activity.Activity, len(page))
	for _, a := range page {
		overlay[a.ID] = a
	}
	return func(id string) (activity.Activity, bool) {
		if a, ok := overlay[id]; ok {
			return a, true
		}
		return s.repo.GetActivity(s.scope.AccountID, id)
	}
}

// sortsAfter reports whether the activity behind later sorts strictly after
// the one behind earlier. Unresolvable IDs report false.
func sortsAfter(earlier, later string, lookup activity.Lookup) bool {
	a, okA := lookup(earlier)
	b, okB := lookup(later)
	if !okA || !okB {
		return false
	}
	return activity.Compare(a, b) < 0
}

// without returns ids minus every member of drop, order preserved.
func without(ids, drop []string) []string {
	if len(ids) == 0 || len(drop) == 0 {
		return ids
	}
	set := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		set[id] = struct{}{}
	}
	return slices.DeleteFunc(slices.Clone(ids), func(id string) bool {
		_, ok := set[id]
		return ok
	})
}
