package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goldenPath(name string) string {
	return filepath.Join("..", "harness", "testdata", "golden", name+".golden")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSim_TextOutput(t *testing.T) {
	out, err := runCLI(t, "sim", scenarioPath("prefetch_and_consume"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ prefetch_and_consume (4 steps)")
	assert.Contains(t, out, "[1] load_first_page")
	assert.Contains(t, out, "showing: tx000:0 tx001:0 tx002:0\n")
}

func TestSim_JSONOutput(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "sim", scenarioPath("prefetch_and_consume"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   SimResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "prefetch_and_consume", resp.Data.Scenario)
	assert.True(t, resp.Data.Pass)
	require.Len(t, resp.Data.Trace, 4)
	assert.Equal(t, []string{"data_loaded"}, resp.Data.Trace[0].Notifications)
}

func TestSim_GoldenMatch(t *testing.T) {
	out, err := runCLI(t, "sim", "--golden", goldenPath("prefetch_and_consume"), scenarioPath("prefetch_and_consume"))
	require.NoError(t, err)
	assert.Contains(t, out, "golden: match")
}

func TestSim_GoldenUpdateThenMismatch(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "trace.golden")

	out, err := runCLI(t, "sim", "--golden", golden, "--update", scenarioPath("local_and_clean"))
	require.NoError(t, err)
	assert.Contains(t, out, "golden: updated")

	written, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"scenario_name": "local_and_clean"`)

	// Another scenario's trace against the same file must differ.
	out, err = runCLI(t, "sim", "--golden", golden, scenarioPath("prefetch_and_consume"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden: mismatch")
}

func TestSim_UpdateRequiresGolden(t *testing.T) {
	_, err := runCLI(t, "sim", "--update", scenarioPath("prefetch_and_consume"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--update requires --golden")
}

func TestSim_FailedAssertionsExitFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failing.yaml")
	scenario := `name: failing
description: "expects more activities than exist"
account: acc-1
history:
  generate: { count: 2 }
steps:
  - action: load_first_page
assertions:
  - { type: showing_count, count: 5 }
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))

	out, err := runCLI(t, "sim", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "Assertion failed: showing_count")
}

func TestSim_BadScenarioIsCommandError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\ndescription: no steps\naccount: acc-1\nsteps: []\n"), 0644))

	out, err := runCLI(t, "--format", "json", "sim", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenario, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "steps list is required")
}

func TestSim_FileDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sim.db")
	_, err := runCLI(t, "sim", "--db", db, scenarioPath("prefetch_and_consume"))
	require.NoError(t, err)

	_, err = os.Stat(db)
	assert.NoError(t, err)
}

func TestSim_HideTinyFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dust.yaml")
	scenario := `name: dust
description: "a dust transfer below the default threshold"
account: acc-1
history:
  activities:
    - { hash: big, timestamp: 500 }
    - { hash: dust, timestamp: 400, incoming: true, from: EQ-dust-sender-addr, amount: "0.001" }
steps:
  - action: load_first_page
`
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))

	showing := func(args ...string) []string {
		t.Helper()
		out, err := runCLI(t, append(args, "--format", "json", "sim", path)...)
		require.NoError(t, err)
		var resp struct {
			Data SimResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Trace, 1)
		return resp.Data.Trace[0].Showing
	}

	assert.Equal(t, []string{"big:0"}, showing(), "hide_tiny_transfers defaults to true")

	cfg := filepath.Join(dir, "feedsync.cue")
	require.NoError(t, os.WriteFile(cfg, []byte("hide_tiny_transfers: false\n"), 0644))
	assert.Equal(t, []string{"big:0", "dust:0"}, showing("--config", cfg))
}
