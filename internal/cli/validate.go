package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/feedsync/internal/config"
)

// ConfigValidationResult holds validation results.
type ConfigValidationResult struct {
	Valid  bool           `json:"valid"`
	File   string         `json:"file"`
	Config *config.Config `json:"config,omitempty"`
}

// ConfigErrorDetails locates a configuration error in its source file.
type ConfigErrorDetails struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config <file.cue>",
		Short: "Validate a configuration file",
		Long: `Validate a CUE configuration file against the feedsync schema.

Unknown fields, out-of-range values and malformed amounts are reported
with their file position. On success the effective configuration,
defaults included, is printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if err != nil {
		var loadErr *config.LoadError
		if !errors.As(err, &loadErr) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "config invalid", err)
		}

		var details *ConfigErrorDetails
		if loadErr.Pos.IsValid() {
			details = &ConfigErrorDetails{
				File:   loadErr.Pos.Filename(),
				Line:   loadErr.Pos.Line(),
				Column: loadErr.Pos.Column(),
			}
		}
		_ = formatter.Error(loadErr.Code, loadErr.Error(), details)

		code := ExitFailure
		if loadErr.Code == config.ErrCodeNotFound {
			code = ExitCommandError
		}
		return WrapExitError(code, "config invalid", err)
	}

	if formatter.JSON() {
		return formatter.Success(ConfigValidationResult{Valid: true, File: path, Config: cfg})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  database: %s\n", cfg.Database)
	fmt.Fprintf(w, "  page_size: %d, min_budget_size: %d\n", cfg.PageSize, cfg.MinBudgetSize)
	fmt.Fprintf(w, "  hide_tiny_transfers: %t, default_tiny_threshold: %s\n", cfg.HideTinyTransfers, cfg.DefaultTinyThreshold)
	fmt.Fprintf(w, "  fetch_retry: %d attempts, %dms..%dms\n",
		cfg.FetchRetry.MaxAttempts, cfg.FetchRetry.InitialIntervalMS, cfg.FetchRetry.MaxIntervalMS)
	fmt.Fprintf(w, "  log_level: %s\n", cfg.LogLevel)
	return nil
}
