package feed

import (
	"fmt"
	"slices"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/bus"
)

func (s *Session) handleRealtime(u bus.Update) error {
	s.realtimeEvents++
	if u.AccountID != s.scope.AccountID {
		s.logger().Debug("ignoring update for other account", "update_account", u.AccountID)
		return nil
	}

	s.detector.Observe(s.scope.AccountID, u.Activities)

	switch u.Kind {
	case bus.KindInitialize:
		s.initialize(u)
	case bus.KindUpdate:
		s.mergeRealtime(u, true)
	case bus.KindPaginate:
		s.mergeRealtime(u, false)
	default:
		return fmt.Errorf("unknown update kind: %d", u.Kind)
	}
	return nil
}

// initialize rebuilds the feed from the repository's scope listing after an
// account switch or reconnect.
func (s *Session) initialize(u bus.Update) {
	lookup := s.lookupWith(u.Activities)

	listing, _ := s.repo.GetAllIDs(s.scope.AccountID, s.scope.Slug)
	fresh := activity.SortIDs(slices.Concat(listing, activity.IDs(s.scoped(u.Activities))), lookup)
	s.allIDs = activity.MergeWithCutoff(fresh, s.allIDs, lookup)

	s.budgetIDs = nil
	s.loadedAll = len(s.allIDs) == 0
	s.historyNotified = false
	s.cursor = nil
	if oldest, ok := activity.OldestOf(s.allIDs, lookup); ok {
		s.cursor = &oldest
	}

	s.logger().Debug("feed initialized", "all", len(s.allIDs))
	s.publish(false)

	if s.scope.Slug == "" {
		s.prepareBudget()
		return
	}
	if len(s.allIDs) == 0 {
		s.loadedAll = false
		s.loadFirstPage()
	}
}

// mergeRealtime folds pushed activities into the visible list. IDs already
// prefetched into the budget stay there.
//
// A page paginated for another scope only contributes activities newer than
// the cursor and never moves it.
func (s *Session) mergeRealtime(u bus.Update, isUpdate bool) {
	lookup := s.lookupWith(u.Activities)
	ownScope := u.Slug == s.scope.Slug

	page := s.scoped(u.Activities)
	if !isUpdate && !ownScope {
		page = s.aboveCursor(page)
	}
	ids := without(activity.IDs(page), s.budgetIDs)
	s.allIDs = activity.MergeUnbounded(ids, s.allIDs, lookup)

	if !isUpdate && ownScope {
		if oldest, ok := activity.Oldest(page); ok {
			s.advanceCursor(oldest)
		}
	}

	s.publish(isUpdate)

	if isUpdate {
		return
	}
	if ownScope && u.LoadedAll != nil && *u.LoadedAll {
		s.markLoadedAll()
	}
	if !u.IsFromCache {
		s.persist(true)
	}
}

// aboveCursor keeps the activities sorting before the cursor. Without a
// cursor nothing has been fetched and nothing is kept.
func (s *Session) aboveCursor(page []activity.Activity) []activity.Activity {
	if s.cursor == nil {
		return nil
	}
	return slices.DeleteFunc(page, func(a activity.Activity) bool {
		return activity.Compare(a, *s.cursor) >= 0
	})
}
