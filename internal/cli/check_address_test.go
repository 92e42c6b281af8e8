package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAddress_Lookalike(t *testing.T) {
	out, err := runCLI(t, "check-address", "--scenario", scenarioPath("filtering"), "EQABzzzzzzzzzzWXYZ")
	require.NoError(t, err)
	assert.Equal(t, "EQABzzzzzzzzzzWXYZ (EQAB...WXYZ): POISONING: lookalike of a known counterparty\n", out)
}

func TestCheckAddress_KnownCounterparty(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "check-address", "--scenario", scenarioPath("filtering"), "EQAB1234567890WXYZ")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   AddressCheck `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, AddressCheck{
		Account:   "acc-1",
		Address:   "EQAB1234567890WXYZ",
		FuzzyKey:  "EQAB...WXYZ",
		Poisoning: false,
		Known:     3,
	}, resp.Data)
}

func TestCheckAddress_OtherAccountHasNoCounterparties(t *testing.T) {
	out, err := runCLI(t, "--format", "json", "check-address", "--scenario", scenarioPath("filtering"), "--account", "acc-2", "EQABzzzzzzzzzzWXYZ")
	require.NoError(t, err)

	var resp struct {
		Data AddressCheck `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Poisoning)
	assert.Equal(t, 0, resp.Data.Known)
}

func TestCheckAddress_MissingScenario(t *testing.T) {
	_, err := runCLI(t, "check-address", "--scenario", "does-not-exist.yaml", "EQAB")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
