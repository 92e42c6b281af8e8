package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Account  string
	Slug     string
	Limit    int
}

// HistoryEntry is one cached activity.
type HistoryEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Summary   string `json:"summary"`
	Pending   bool   `json:"pending,omitempty"`
}

// HistoryResult is the cached view of one scope.
type HistoryResult struct {
	Account   string         `json:"account"`
	Slug      string         `json:"slug,omitempty"`
	Persisted bool           `json:"persisted"`
	ListSize  int            `json:"list_size"`
	LoadedAll bool           `json:"loaded_all"`
	Entries   []HistoryEntry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the cached history of a feed",
		Long: `Show what the SQLite cache holds for one account and feed scope:
the persisted scope list and the newest cached activities.

The database defaults to the configured one.

Examples:
  feedsync history --account acc-1
  feedsync history --db /tmp/sim.db --account acc-1 --slug usdt --limit 5
  feedsync history --account acc-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite cache (default: config database)")
	cmd.Flags().StringVar(&opts.Account, "account", "", "account to show (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&opts.Slug, "slug", "", "token feed; empty shows all activities")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of activities")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := context.Background()

	path := opts.Database
	if path == "" {
		path = opts.cfg().Database
	}
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeStore, fmt.Sprintf("database not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	formatter.VerboseLog("Opened %s", path)

	result := HistoryResult{Account: opts.Account, Slug: opts.Slug}

	list, err := st.ReadScopeList(ctx, opts.Account, opts.Slug)
	switch {
	case err == nil:
		result.Persisted = true
		result.ListSize = len(list.IDs)
		result.LoadedAll = list.LoadedAll
	case !errors.Is(err, store.ErrNotFound):
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read scope list", err)
	}

	page, err := st.ReadPage(ctx, opts.Account, opts.Slug, nil, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	result.Entries = make([]HistoryEntry, 0, len(page))
	for _, a := range page {
		result.Entries = append(result.Entries, HistoryEntry{
			ID:        a.ID,
			Kind:      string(a.Kind),
			Timestamp: a.Timestamp,
			Summary:   summarize(a),
			Pending:   a.IsPending,
		})
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	scope := "all"
	if result.Slug != "" {
		scope = result.Slug
	}
	if result.Persisted {
		fmt.Fprintf(w, "%s/%s: %d ids persisted, loaded_all=%t\n", result.Account, scope, result.ListSize, result.LoadedAll)
	} else {
		fmt.Fprintf(w, "%s/%s: no persisted list\n", result.Account, scope)
	}
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No cached activities.")
		return nil
	}
	for _, e := range result.Entries {
		fmt.Fprintf(w, "  %-24s %13d  %s\n", e.ID, e.Timestamp, e.Summary)
	}
	return nil
}

func summarize(a activity.Activity) string {
	if a.Kind == activity.KindSwap {
		return fmt.Sprintf("swap %s %s -> %s %s (%s)", a.FromAmount, a.From, a.ToAmount, a.To, a.Status)
	}
	if a.IsIncoming {
		return fmt.Sprintf("received %s %s from %s", a.Amount, a.Slug, a.FromAddress)
	}
	return fmt.Sprintf("sent %s %s to %s", a.Amount, a.Slug, a.ToAddress)
}
