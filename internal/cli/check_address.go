package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/feedsync/internal/harness"
	"github.com/roach88/feedsync/internal/poison"
)

// CheckAddressOptions holds flags for the check-address command.
type CheckAddressOptions struct {
	*RootOptions
	Account  string
	Scenario string
}

// AddressCheck is the check-address result.
type AddressCheck struct {
	Account   string `json:"account"`
	Address   string `json:"address"`
	FuzzyKey  string `json:"fuzzy_key"`
	Poisoning bool   `json:"poisoning"`
	Known     int    `json:"known_counterparties"`
}

// NewCheckAddressCommand creates the check-address command.
func NewCheckAddressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckAddressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check-address <address>",
		Short: "Check an address against a scenario's counterparties",
		Long: `Record every incoming transfer of a scenario's history and report
whether the address visually matches a known counterparty without being it.

Examples:
  feedsync check-address --scenario ./scenarios/filtering.yaml EQABzzzzzzzzzzWXYZ
  feedsync check-address --account acc-1 --scenario ./s.yaml --format json EQAB...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckAddress(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario whose history seeds the detector (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Account, "account", "", "account to check (default: the scenario account)")

	return cmd
}

func runCheckAddress(opts *CheckAddressOptions, address string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(opts.Scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	detector, err := harness.LoadDetector(scenario)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to seed detector", err)
	}

	account := opts.Account
	if account == "" {
		account = scenario.Account
	}

	check := AddressCheck{
		Account:   account,
		Address:   address,
		FuzzyKey:  poison.FuzzyKey(address),
		Poisoning: detector.IsPoisoningAttempt(account, address),
		Known:     detector.Len(account),
	}
	formatter.VerboseLog("Detector holds %d counterparties for %s", check.Known, account)

	if formatter.JSON() {
		return formatter.Success(check)
	}

	verdict := "no match"
	if check.Poisoning {
		verdict = "POISONING: lookalike of a known counterparty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", check.Address, check.FuzzyKey, verdict)
	return nil
}
