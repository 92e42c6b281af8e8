package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateAssertion checks one assertion against the final state.
func evaluateAssertion(final FinalState, a Assertion) error {
	switch a.Type {
	case AssertShowingIDs:
		if !slices.Equal(final.Showing, a.IDs) {
			return mismatch(a.Type, formatIDs(a.IDs), formatIDs(final.Showing))
		}
	case AssertShowingCount:
		return compareCount(a.Type, *a.Count, len(final.Showing))
	case AssertAllCount:
		return compareCount(a.Type, *a.Count, len(final.AllIDs))
	case AssertBudgetCount:
		return compareCount(a.Type, *a.Count, len(final.BudgetIDs))
	case AssertBackendCalls:
		return compareCount(a.Type, *a.Count, final.BackendCalls)
	case AssertNotificationCount:
		n := 0
		for _, name := range final.Notifications {
			if name == a.Notification {
				n++
			}
		}
		if n != *a.Count {
			return mismatch(a.Type,
				fmt.Sprintf("%s x%d", a.Notification, *a.Count),
				fmt.Sprintf("%s x%d", a.Notification, n))
		}
	case AssertLoadedAll:
		if final.LoadedAll != *a.Value {
			return mismatch(a.Type, fmt.Sprint(*a.Value), fmt.Sprint(final.LoadedAll))
		}
	case AssertState:
		if final.State != a.State {
			return mismatch(a.Type, a.State, final.State)
		}
	case AssertNoDuplicates:
		if dup, ok := firstDuplicate(final.Showing); ok {
			return mismatch(a.Type, "unique showing ids", "duplicate "+dup+" in showing")
		}
		if dup, ok := firstDuplicate(final.AllIDs); ok {
			return mismatch(a.Type, "unique all ids", "duplicate "+dup+" in all ids")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func compareCount(kind string, want, got int) error {
	if want != got {
		return mismatch(kind, fmt.Sprint(want), fmt.Sprint(got))
	}
	return nil
}

func mismatch(kind, expected, actual string) error {
	return &AssertionError{Type: kind, Expected: expected, Actual: actual}
}

func firstDuplicate(ids []string) (string, bool) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return id, true
		}
		seen[id] = struct{}{}
	}
	return "", false
}

func formatIDs(ids []string) string {
	return "[" + strings.Join(ids, " ") + "]"
}
