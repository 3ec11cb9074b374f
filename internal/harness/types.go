package harness

// Trace entry types.
const (
	EntryMutation = "mutation"
	EntryEvent    = "event"
)

// TraceEvent is one reduced mutation or emitted event.
type TraceEvent struct {
	Type  string `json:"type"` // "mutation" or "event"
	Name  string `json:"name"`
	Value int    `json:"value"`
	Step  int64  `json:"step"`
	At    string `json:"at"` // virtual time since the scenario started
	Flow  int    `json:"flow"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every mutation and event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the counter value after the last step.
	Final int `json:"final"`

	// Journaled is the number of journal entries written during the run.
	Journaled int `json:"journaled"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an entry to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
