package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func sampleFinal() FinalState {
	return FinalState{
		Showing:       []string{"a", "b"},
		AllIDs:        []string{"a", "b", "c"},
		BudgetIDs:     []string{"d"},
		LoadedAll:     true,
		State:         "idle",
		Notifications: []string{NotifyDataLoaded, NotifyDataLoaded, NotifyFullyLoaded},
		BackendCalls:  4,
	}
}

func TestEvaluateAssertion_Pass(t *testing.T) {
	final := sampleFinal()
	tests := []Assertion{
		{Type: AssertShowingIDs, IDs: []string{"a", "b"}},
		{Type: AssertShowingCount, Count: intPtr(2)},
		{Type: AssertAllCount, Count: intPtr(3)},
		{Type: AssertBudgetCount, Count: intPtr(1)},
		{Type: AssertBackendCalls, Count: intPtr(4)},
		{Type: AssertNotificationCount, Notification: NotifyDataLoaded, Count: intPtr(2)},
		{Type: AssertNotificationCount, Notification: NotifyCacheMiss, Count: intPtr(0)},
		{Type: AssertLoadedAll, Value: boolPtr(true)},
		{Type: AssertState, State: "idle"},
		{Type: AssertNoDuplicates},
	}
	for _, a := range tests {
		t.Run(a.Type, func(t *testing.T) {
			assert.NoError(t, evaluateAssertion(final, a))
		})
	}
}

func TestEvaluateAssertion_Fail(t *testing.T) {
	final := sampleFinal()
	tests := []struct {
		assertion Assertion
		actual    string
	}{
		{Assertion{Type: AssertShowingIDs, IDs: []string{"b", "a"}}, "[a b]"},
		{Assertion{Type: AssertAllCount, Count: intPtr(1)}, "3"},
		{Assertion{Type: AssertNotificationCount, Notification: NotifyFullyLoaded, Count: intPtr(2)}, "history_fully_loaded x1"},
		{Assertion{Type: AssertLoadedAll, Value: boolPtr(false)}, "true"},
		{Assertion{Type: AssertState, State: "preparing"}, "idle"},
	}
	for _, tt := range tests {
		t.Run(tt.assertion.Type, func(t *testing.T) {
			err := evaluateAssertion(final, tt.assertion)
			require.Error(t, err)

			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.assertion.Type, ae.Type)
			assert.Equal(t, tt.actual, ae.Actual)
		})
	}
}

func TestEvaluateAssertion_Duplicates(t *testing.T) {
	final := sampleFinal()
	final.AllIDs = []string{"a", "b", "a"}

	err := evaluateAssertion(final, Assertion{Type: AssertNoDuplicates})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate a in all ids")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertState, Expected: "idle", Actual: "preparing"}
	assert.Equal(t, "Assertion failed: state\n  Expected: idle\n  Actual: preparing", err.Error())
}
