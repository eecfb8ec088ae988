package harness

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Seq     int      `json:"seq"`
	Op      string   `json:"op"`
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Outcome string   `json:"outcome"`
	IDs     []string `json:"ids,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it.
func (r *Result) AddTrace(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
