package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/feedsync/internal/harness"
)

// SimOptions holds flags for the sim command.
type SimOptions struct {
	*RootOptions
	Database string
	Golden   string // golden trace file to compare against
	Update   bool   // write the golden file instead of comparing
}

// Golden comparison outcomes.
const (
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// SimResult is the outcome of one simulated scenario.
type SimResult struct {
	Scenario string              `json:"scenario"`
	Pass     bool                `json:"pass"`
	Trace    []harness.TraceStep `json:"trace"`
	Errors   []string            `json:"errors,omitempty"`
	Golden   string              `json:"golden,omitempty"`
}

// NewSimCommand creates the sim command.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sim <scenario.yaml>",
		Short: "Run a feed scenario against a simulated backend",
		Long: `Run a YAML scenario against a real feed session, a SQLite-backed
repository and a fixture backend, and print the trace: the notifications
and the visible activity ids after every step.

Page size, prefetch target, the tiny-transfer preference and thresholds, and
the retry policy come from the configuration unless the scenario sets them.

Exit codes:
  0 - Scenario passed
  1 - Assertions failed or the trace differs from the golden file
  2 - Command error (unreadable scenario, database not openable, etc.)

Examples:
  feedsync sim ./scenarios/prefetch.yaml
  feedsync sim --db /tmp/sim.db ./scenarios/prefetch.yaml
  feedsync sim --golden ./golden/prefetch.golden --update ./scenarios/prefetch.yaml
  feedsync sim --format json ./scenarios/prefetch.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite cache (default in-memory)")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden trace file to compare against")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "write the golden file instead of comparing")

	return cmd
}

func runSim(opts *SimOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s (%d steps)", scenario.Name, len(scenario.Steps))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.cfg()
	tiny := cfg.TinyClassifier()
	hideTiny := cfg.HideTinyTransfers
	result, err := harness.Run(ctx, scenario, harness.Options{
		DBPath:             opts.Database,
		PageSize:           cfg.PageSize,
		MinBudgetSize:      cfg.MinBudgetSize,
		Tiny:               &tiny,
		HideTiny:           &hideTiny,
		Retry:              cfg.Retry(),
		SubscriptionBuffer: cfg.SubscriptionBuffer,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := SimResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}

	if opts.Golden != "" {
		status, err := checkGolden(opts, scenario.Name, result)
		if err != nil {
			_ = formatter.Error(ErrCodeGolden, err.Error(), nil)
			return WrapExitError(ExitCommandError, "golden file", err)
		}
		out.Golden = status
		if status == GoldenMismatch {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("trace differs from %s", opts.Golden))
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		writeSimText(cmd.OutOrStdout(), out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// checkGolden writes or compares the golden trace.
func checkGolden(opts *SimOptions, name string, result *harness.Result) (string, error) {
	data, err := harness.MarshalTrace(name, result)
	if err != nil {
		return "", err
	}

	if opts.Update {
		if err := os.WriteFile(opts.Golden, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	want, err := os.ReadFile(opts.Golden)
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}

func writeSimText(w io.Writer, r SimResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%d steps)\n", mark, r.Scenario, len(r.Trace))

	for _, step := range r.Trace {
		notes := "-"
		if len(step.Notifications) > 0 {
			notes = strings.Join(step.Notifications, ",")
		}
		fmt.Fprintf(w, "  [%d] %-16s notify=%s state=%s all=%d budget=%d loaded_all=%t backend=%d\n",
			step.Step, step.Action, notes, step.State,
			step.AllCount, step.BudgetCount, step.LoadedAll, step.BackendCalls)
		fmt.Fprintf(w, "      showing: %s\n", strings.Join(step.Showing, " "))
	}

	if r.Golden != "" {
		fmt.Fprintf(w, "  golden: %s\n", r.Golden)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
	}
}
