package feed

import (
	"github.com/roach88/feedsync/internal/activity"
)

// publish recomputes the visible list and notifies the delegate.
func (s *Session) publish(isUpdate bool) {
	s.recomputeShowing()
	s.notify(func(d Delegate) { d.OnDataLoaded(isUpdate) })
}

// recomputeShowing rebuilds the visible list: local and pending activities
// first, then allIDs resolved through the repository, filtered.
func (s *Session) recomputeShowing() {
	locals := s.repo.GetLocalAndPending(s.scope.AccountID, s.scope.Slug)
	activity.Sort(locals)

	seen := make(map[string]struct{}, len(locals)+len(s.allIDs))
	list := make([]activity.Activity, 0, len(locals)+len(s.allIDs))
	for _, a := range locals {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		list = append(list, a)
	}
	for _, id := range s.allIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		a, ok := s.repo.GetActivity(s.scope.AccountID, id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, a)
	}

	shown := s.filter.Apply(list, true, s.scope.Slug)
	s.showing.Store(&shown)
}

// notify posts fn to the UI dispatcher. Notifications posted by a session
// that is cleaned before they run are dropped.
func (s *Session) notify(fn func(Delegate)) {
	s.ui.Post(func() {
		if s.cleared.Load() {
			return
		}
		fn(s.delegate)
	})
}

// persist hands the visible and prefetched activities to the repository.
func (s *Session) persist(afterPaginate bool) {
	ids := make([]string, 0, len(s.allIDs)+len(s.budgetIDs))
	ids = append(ids, s.allIDs...)
	ids = append(ids, s.budgetIDs...)

	list := make([]activity.Activity, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.repo.GetActivity(s.scope.AccountID, id); ok && a.IsTimestampEligible() {
			list = append(list, a)
		}
	}

	loadedAll := s.loadedAll
	s.repo.PersistList(s.scope.AccountID, s.scope.Slug, list, afterPaginate, &loadedAll)
}
