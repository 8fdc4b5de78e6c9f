package harness

import "github.com/roach88/giftswap/internal/exchange"

// Outcome values recorded in the trace.
const (
	OutcomeOK = "ok"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Outcome string `json:"outcome"` // "ok" or the error kind
	Token   string `json:"token,omitempty"`
}

// Committed reports whether the step changed durable state.
func (e TraceEvent) Committed() bool {
	return e.Outcome == OutcomeOK && e.Op != OpRestart
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the registry state after the flow.
	Final exchange.Snapshot `json:"-"`

	// StateFile holds the bytes of the persisted state file, nil if no
	// write ever succeeded.
	StateFile []byte `json:"-"`

	// Commits is the number of successful durable writes.
	Commits int64 `json:"commits"`
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

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// CommittedOps returns the operations that reached disk, in order.
func (r *Result) CommittedOps() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Committed() {
			out = append(out, e.Op)
		}
	}
	return out
}
