package harness

// Delegate notifications as they appear in traces.
const (
	NotifyDataLoaded  = "data_loaded"
	NotifyDataUpdated = "data_updated"
	NotifyCacheMiss   = "cache_miss"
	NotifyFullyLoaded = "history_fully_loaded"
)

// TraceStep is the session state observed after one step settled.
type TraceStep struct {
	Step          int      `json:"step"`
	Action        string   `json:"action"`
	Notifications []string `json:"notifications"`
	Showing       []string `json:"showing"`
	AllCount      int      `json:"all_count"`
	BudgetCount   int      `json:"budget_count"`
	LoadedAll     bool     `json:"loaded_all"`
	State         string   `json:"state"`
	BackendCalls  int      `json:"backend_calls"`
}

// FinalState is what assertions are evaluated against.
type FinalState struct {
	Showing       []string
	AllIDs        []string
	BudgetIDs     []string
	LoadedAll     bool
	State         string
	Notifications []string
	BackendCalls  int
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step ran and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per step.
	Trace []TraceStep `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the state after the last step.
	Final FinalState `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceStep{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
