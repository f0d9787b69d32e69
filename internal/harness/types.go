package harness

import "github.com/roach88/poe/internal/ir"

// Trace entry types.
const (
	TraceStep  = "step"
	TraceEvent = "event"
)

// TraceEntry is either a step outcome or an event emitted by that step.
type TraceEntry struct {
	Type string `json:"type"`

	// Step fields.
	Index    int       `json:"index,omitempty"`
	Op       string    `json:"op,omitempty"`
	Caller   string    `json:"caller,omitempty"`
	Claim    ir.Claim  `json:"claim,omitempty"`
	Receiver string    `json:"receiver,omitempty"`
	Height   ir.Height `json:"height,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`

	// Event is set for event entries.
	Event *ir.Event `json:"event,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expectations.
	Pass bool `json:"pass"`

	// Trace contains step outcomes and events in order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains mismatch messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace records a step outcome.
func (r *Result) AddStepTrace(index int, st Step, claim ir.Claim, h ir.Height, outcome string) {
	r.Trace = append(r.Trace, TraceEntry{
		Type:     TraceStep,
		Index:    index,
		Op:       st.Op,
		Caller:   st.Caller,
		Claim:    claim,
		Receiver: st.Receiver,
		Height:   h,
		Outcome:  outcome,
	})
}

// AddEventTrace records an emitted event.
func (r *Result) AddEventTrace(ev ir.Event) {
	r.Trace = append(r.Trace, TraceEntry{Type: TraceEvent, Event: &ev})
}
