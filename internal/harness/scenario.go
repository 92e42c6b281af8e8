package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/bus"
	"github.com/roach88/feedsync/internal/testutil"
)

// Scenario drives one feed session through a sequence of steps against a
// fixture backend and asserts on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Account is the wallet whose history is served.
	Account string `yaml:"account"`

	// Slug selects a token feed. Empty is the all-activities feed.
	Slug string `yaml:"slug,omitempty"`

	// PageSize is the backend page size. Zero uses the repository default.
	PageSize int `yaml:"page_size,omitempty"`

	// MinBudgetSize is the prefetch target. Zero uses the session default.
	MinBudgetSize int `yaml:"min_budget_size,omitempty"`

	// HideTiny enables the tiny-transfer filter with TinyThreshold. Unset
	// leaves the choice to the runner.
	HideTiny      *bool  `yaml:"hide_tiny,omitempty"`
	TinyThreshold string `yaml:"tiny_threshold,omitempty"`

	// History is the backend's confirmed history for Account.
	History History `yaml:"history"`

	// Steps run in order. The harness waits for the session to settle
	// after each one.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// History lists backend activities explicitly, generates them, or both.
type History struct {
	Generate   *Generate      `yaml:"generate,omitempty"`
	Activities []ActivitySpec `yaml:"activities,omitempty"`
}

// Generate produces Count outgoing transactions with hashes Prefix000,
// Prefix001, ... at timestamps Start, Start-Step, ...
type Generate struct {
	Count  int    `yaml:"count"`
	Prefix string `yaml:"prefix,omitempty"`
	Start  int64  `yaml:"start,omitempty"`
	Step   int64  `yaml:"step,omitempty"`
	Slug   string `yaml:"slug,omitempty"`
}

// ActivitySpec describes one activity in YAML.
//
// For transactions From and To are addresses; for swaps they are token slugs.
type ActivitySpec struct {
	Kind      string `yaml:"kind,omitempty"`
	ID        string `yaml:"id,omitempty"`
	Hash      string `yaml:"hash,omitempty"`
	Timestamp int64  `yaml:"timestamp"`
	Slug      string `yaml:"slug,omitempty"`
	From      string `yaml:"from,omitempty"`
	To        string `yaml:"to,omitempty"`
	Incoming  bool   `yaml:"incoming,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	Scam      bool   `yaml:"scam,omitempty"`
	Pending   bool   `yaml:"pending,omitempty"`
	Hidden    bool   `yaml:"hidden,omitempty"`
}

// Step is one action applied to the running session.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Kind is the realtime update kind: initialize, update or paginate.
	Kind string `yaml:"kind,omitempty"`

	// Account overrides the scenario account for realtime updates.
	Account string `yaml:"account,omitempty"`

	// Slug is the scope a paginate update was fetched for.
	Slug string `yaml:"slug,omitempty"`

	// LoadedAll is forwarded on paginate updates.
	LoadedAll *bool `yaml:"loaded_all,omitempty"`

	// Activities carries realtime, add_local and backend_append payloads.
	Activities []ActivitySpec `yaml:"activities,omitempty"`

	// ID names the local activity removed by remove_local.
	ID string `yaml:"id,omitempty"`

	// Count is the number of backend failures injected by backend_fail.
	Count int `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionLoadFirstPage = "load_first_page"
	ActionPrepare       = "prepare"
	ActionConsume       = "consume"
	ActionRealtime      = "realtime"
	ActionAddLocal      = "add_local"
	ActionRemoveLocal   = "remove_local"
	ActionBackendAppend = "backend_append"
	ActionBackendFail   = "backend_fail"
	ActionClean         = "clean"
)

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// IDs is the expected showing list (showing_ids).
	IDs []string `yaml:"ids,omitempty"`

	// Count is the expected count (showing_count, all_count, budget_count,
	// notification_count, backend_calls).
	Count *int `yaml:"count,omitempty"`

	// Value is the expected flag (loaded_all).
	Value *bool `yaml:"value,omitempty"`

	// State is the expected budget state (state).
	State string `yaml:"state,omitempty"`

	// Notification names the delegate call counted by notification_count.
	Notification string `yaml:"notification,omitempty"`
}

// Assertion type constants.
const (
	AssertShowingIDs        = "showing_ids"
	AssertShowingCount      = "showing_count"
	AssertAllCount          = "all_count"
	AssertBudgetCount       = "budget_count"
	AssertLoadedAll         = "loaded_all"
	AssertState             = "state"
	AssertNotificationCount = "notification_count"
	AssertBackendCalls      = "backend_calls"
	AssertNoDuplicates      = "no_duplicates"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Account == "" {
		return fmt.Errorf("account is required")
	}

	if s.PageSize < 0 || s.MinBudgetSize < 0 {
		return fmt.Errorf("page_size and min_budget_size must be non-negative")
	}

	if s.TinyThreshold != "" {
		if _, err := decimal.NewFromString(s.TinyThreshold); err != nil {
			return fmt.Errorf("tiny_threshold: %w", err)
		}
	}

	if g := s.History.Generate; g != nil && g.Count < 0 {
		return fmt.Errorf("history.generate: count must be non-negative")
	}
	for i, spec := range s.History.Activities {
		if _, err := spec.Activity(); err != nil {
			return fmt.Errorf("history.activities[%d]: %w", i, err)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *Step) error {
	for i, spec := range step.Activities {
		if _, err := spec.Activity(); err != nil {
			return fmt.Errorf("steps[%d].activities[%d]: %w", index, i, err)
		}
	}

	switch step.Action {
	case ActionLoadFirstPage, ActionPrepare, ActionConsume, ActionClean:
	case ActionRealtime:
		if _, ok := bus.ParseUpdateKind(step.Kind); !ok {
			return fmt.Errorf("steps[%d]: unknown realtime kind %q", index, step.Kind)
		}
	case ActionAddLocal:
		if len(step.Activities) != 1 {
			return fmt.Errorf("steps[%d]: add_local takes exactly one activity", index)
		}
		if step.Activities[0].ID == "" {
			return fmt.Errorf("steps[%d]: add_local activity needs an id", index)
		}
	case ActionRemoveLocal:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for remove_local", index)
		}
	case ActionBackendAppend:
		if len(step.Activities) == 0 {
			return fmt.Errorf("steps[%d]: activities are required for backend_append", index)
		}
	case ActionBackendFail:
		if step.Count <= 0 {
			return fmt.Errorf("steps[%d]: count must be positive for backend_fail", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertShowingIDs:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for showing_ids", index)
		}
	case AssertShowingCount, AssertAllCount, AssertBudgetCount, AssertBackendCalls:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertNotificationCount:
		if a.Notification == "" {
			return fmt.Errorf("assertions[%d]: notification is required for notification_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for notification_count", index)
		}
	case AssertLoadedAll:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for loaded_all", index)
		}
	case AssertState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required", index)
		}
	case AssertNoDuplicates:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// Activity builds the described activity. Transactions default to a
// toncoin transfer of 1; an ID or a hash is required.
func (s ActivitySpec) Activity() (activity.Activity, error) {
	amount := decimal.NewFromInt(1)
	if s.Amount != "" {
		d, err := decimal.NewFromString(s.Amount)
		if err != nil {
			return activity.Activity{}, fmt.Errorf("amount: %w", err)
		}
		amount = d
	}

	switch activity.Kind(s.Kind) {
	case activity.KindSwap:
		id := s.ID
		if id == "" {
			if s.Hash == "" {
				return activity.Activity{}, fmt.Errorf("swap needs id or hash")
			}
			id = activity.SwapID(s.Hash)
		}
		return activity.Activity{
			Kind:       activity.KindSwap,
			ID:         id,
			Timestamp:  s.Timestamp,
			IsPending:  s.Pending,
			ShouldHide: s.Hidden,
			From:       s.From,
			To:         s.To,
			FromAmount: amount,
			ToAmount:   amount,
			Status:     activity.SwapStatusCompleted,
		}, nil

	case activity.KindTransaction, "":
		id := s.ID
		if id == "" {
			if s.Hash == "" {
				return activity.Activity{}, fmt.Errorf("transaction needs id or hash")
			}
			id = activity.TransactionID(s.Hash, 0)
		}
		slug := s.Slug
		if slug == "" {
			slug = "toncoin"
		}
		return activity.Activity{
			Kind:        activity.KindTransaction,
			ID:          id,
			Timestamp:   s.Timestamp,
			IsLocal:     activity.IsLocalID(id),
			IsPending:   s.Pending,
			ShouldHide:  s.Hidden,
			Slug:        slug,
			FromAddress: s.From,
			ToAddress:   s.To,
			IsIncoming:  s.Incoming,
			Amount:      amount,
			IsScam:      s.Scam,
		}, nil

	default:
		return activity.Activity{}, fmt.Errorf("unknown activity kind %q", s.Kind)
	}
}

// Activities converts every spec in order.
func Activities(specs []ActivitySpec) ([]activity.Activity, error) {
	out := make([]activity.Activity, 0, len(specs))
	for i, spec := range specs {
		a, err := spec.Activity()
		if err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Build returns the backend history: generated activities followed by the
// explicit ones.
func (h History) Build() ([]activity.Activity, error) {
	var out []activity.Activity
	if g := h.Generate; g != nil {
		prefix := g.Prefix
		if prefix == "" {
			prefix = "tx"
		}
		start := g.Start
		if start == 0 {
			start = 1000 * 1000
		}
		tl := testutil.NewTimeline(start, g.Step)
		for i := 0; i < g.Count; i++ {
			a := testutil.Tx(fmt.Sprintf("%s%03d", prefix, i), tl.Next())
			if g.Slug != "" {
				a.Slug = g.Slug
			}
			out = append(out, a)
		}
	}

	explicit, err := Activities(h.Activities)
	if err != nil {
		return nil, err
	}
	return append(out, explicit...), nil
}
