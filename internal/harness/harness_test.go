package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_FileDatabaseMatchesMemory(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/prefetch_and_consume.yaml")
	require.NoError(t, err)

	inMemory, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)

	onDisk, err := Run(context.Background(), scenario, Options{
		DBPath: filepath.Join(t.TempDir(), "sim.db"),
	})
	require.NoError(t, err)

	assert.Equal(t, inMemory.Trace, onDisk.Trace)
	assert.True(t, onDisk.Pass)
}

func TestRun_FailedAssertionReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectation
description: "Expects more than the history holds"
account: acc-1
page_size: 5
history:
  generate: { count: 2 }
steps:
  - action: load_first_page
assertions:
  - { type: showing_count, count: 3 }
  - { type: loaded_all, value: true }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "showing_count")
	assert.Contains(t, result.Errors[0], "Expected: 3")
	assert.Contains(t, result.Errors[0], "Actual: 2")
}

func TestRun_BackendAppendServedOnNextLoad(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: backend_append
description: "Activities appended to the backend show up on reload"
account: acc-1
page_size: 5
history:
  generate: { count: 2 }
steps:
  - action: load_first_page
  - action: backend_append
    activities:
      - { hash: newer, timestamp: 5000000 }
  - action: load_first_page
assertions:
  - type: showing_ids
    ids: ["newer:0", "tx000:0", "tx001:0"]
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Final.BackendCalls)
}

func TestRun_InitializeRebuildsFromCache(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: initialize
description: "Initialize rebuilds the feed from the persisted scope list"
account: acc-1
page_size: 2
min_budget_size: 2
history:
  generate: { count: 6 }
steps:
  - action: load_first_page
  - action: realtime
    kind: initialize
assertions:
  - { type: no_duplicates }
  - { type: state, state: idle }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// The cutoff keeps the visible list at its own depth; the prefetched
	// page below it is then served from the cache.
	require.Len(t, result.Trace, 2)
	after := result.Trace[1]
	assert.Equal(t, []string{"tx000:0", "tx001:0"}, after.Showing)
	assert.Equal(t, 2, after.AllCount)
	assert.Equal(t, 2, after.BudgetCount)
	assert.Equal(t, 2, after.BackendCalls)
	assert.Contains(t, after.Notifications, NotifyDataLoaded)
}

func TestLoadDetector(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/filtering.yaml")
	require.NoError(t, err)

	d, err := LoadDetector(scenario)
	require.NoError(t, err)

	assert.True(t, d.IsPoisoningAttempt("acc-1", "EQABzzzzzzzzzzWXYZ"))
	assert.False(t, d.IsPoisoningAttempt("acc-1", "EQAB1234567890WXYZ"))
	assert.False(t, d.IsPoisoningAttempt("acc-2", "EQABzzzzzzzzzzWXYZ"))
}

func TestMarshalTrace_TrailingNewline(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, TraceStep{
		Step:          1,
		Action:        ActionConsume,
		Notifications: []string{},
		Showing:       []string{},
		State:         "idle",
	})

	data, err := MarshalTrace("one", result)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), `"scenario_name": "one"`)
	assert.Contains(t, string(data), `"notifications": []`)
}
