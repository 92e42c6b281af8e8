package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedsync/internal/config"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedsync.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestValidateConfig_Valid(t *testing.T) {
	path := writeConfig(t, "page_size: 25\nfetch_retry: max_attempts: 2\n")

	out, err := runCLI(t, "validate-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "page_size: 25, min_budget_size: 60")
	assert.Contains(t, out, "fetch_retry: 2 attempts, 200ms..5000ms")
}

func TestValidateConfig_JSON(t *testing.T) {
	path := writeConfig(t, "hide_tiny_transfers: false\n")

	out, err := runCLI(t, "--format", "json", "validate-config", path)
	require.NoError(t, err)

	var resp struct {
		Status string                 `json:"status"`
		Data   ConfigValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Config)
	assert.False(t, resp.Data.Config.HideTinyTransfers)
	assert.Equal(t, 60, resp.Data.Config.PageSize)
}

func TestValidateConfig_SchemaViolation(t *testing.T) {
	path := writeConfig(t, "page_size: 0\n")

	out, err := runCLI(t, "--format", "json", "validate-config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, config.ErrCodeInvalid, resp.Error.Code)
}

func TestValidateConfig_UnknownField(t *testing.T) {
	path := writeConfig(t, "page_sise: 10\n")

	_, err := runCLI(t, "validate-config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateConfig_Missing(t *testing.T) {
	out, err := runCLI(t, "validate-config", filepath.Join(t.TempDir(), "absent.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")
}
