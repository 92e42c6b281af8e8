package activity

import (
	"slices"
	"strings"
)

// Lookup resolves an activity by ID. Implementations are typically backed
// by the repository cache and may miss.
type Lookup func(id string) (Activity, bool)

// Compare orders a before b when a is newer. Ties on timestamp fall back to
// ID descending, so the order is total over distinct IDs.
func Compare(a, b Activity) int {
	switch {
	case a.Timestamp > b.Timestamp:
		return -1
	case a.Timestamp < b.Timestamp:
		return 1
	}
	return strings.Compare(b.ID, a.ID)
}

// Sort sorts activities in place by Compare.
func Sort(activities []Activity) {
	slices.SortFunc(activities, Compare)
}

// resolve returns the activity for id, or a placeholder with timestamp 0
// when the lookup misses.
func resolve(id string, byID Lookup) Activity {
	if byID != nil {
		if a, ok := byID(id); ok {
			a.ID = id
			return a
		}
	}
	return Activity{ID: id}
}

// Dedupe returns ids with later duplicates removed, keeping first occurrence.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortIDs returns the deduplicated ids ordered by Compare.
func SortIDs(ids []string, byID Lookup) []string {
	resolved := make([]Activity, 0, len(ids))
	for _, id := range Dedupe(ids) {
		resolved = append(resolved, resolve(id, byID))
	}
	Sort(resolved)
	return IDs(resolved)
}

// MergeUnbounded unions both lists, drops duplicates and sorts.
func MergeUnbounded(newIDs, existingIDs []string, byID Lookup) []string {
	all := make([]string, 0, len(newIDs)+len(existingIDs))
	all = append(all, newIDs...)
	all = append(all, existingIDs...)
	return SortIDs(all, byID)
}

// MergeWithCutoff unions both lists like MergeUnbounded but drops every ID
// older than the cutoff: the newer of the two lists' last timestamps.
//
// Two snapshots paginated to different depths cannot both vouch for the
// range below the shallower one. Keeping that range would leave a silent
// gap where the shallower list never fetched.
func MergeWithCutoff(newIDs, existingIDs []string, byID Lookup) []string {
	if len(newIDs) == 0 && len(existingIDs) == 0 {
		return []string{}
	}

	cutoff := max(lastTimestamp(newIDs, byID), lastTimestamp(existingIDs, byID))

	all := make([]string, 0, len(newIDs)+len(existingIDs))
	all = append(all, newIDs...)
	all = append(all, existingIDs...)

	kept := make([]Activity, 0, len(all))
	for _, id := range Dedupe(all) {
		a := resolve(id, byID)
		if a.Timestamp < cutoff {
			continue
		}
		kept = append(kept, a)
	}
	Sort(kept)
	return IDs(kept)
}

func lastTimestamp(ids []string, byID Lookup) int64 {
	if len(ids) == 0 {
		return 0
	}
	return resolve(ids[len(ids)-1], byID).Timestamp
}

// Oldest returns the last timestamp-eligible activity of a list sorted by
// Compare, scanning from the end.
func Oldest(activities []Activity) (Activity, bool) {
	for i := len(activities) - 1; i >= 0; i-- {
		if activities[i].IsTimestampEligible() {
			return activities[i], true
		}
	}
	return Activity{}, false
}

// OldestOf is Oldest over an ID list resolved through byID. IDs the lookup
// misses are skipped.
func OldestOf(ids []string, byID Lookup) (Activity, bool) {
	for i := len(ids) - 1; i >= 0; i-- {
		a, ok := byID(ids[i])
		if ok && a.IsTimestampEligible() {
			return a, true
		}
	}
	return Activity{}, false
}
