package harness

import (
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	Step         int                  `json:"step"`
	Op           string               `json:"op"`
	Resource     string               `json:"resource"`
	Target       string               `json:"target,omitempty"`
	Timestamp    int64                `json:"timestamp,omitempty"`
	Response     backend.ResponseCode `json:"response"`
	DocumentUuid model.DocumentUuid   `json:"documentUuid,omitempty"`
	Blocking     []string             `json:"blocking,omitempty"`
	Missing      []string             `json:"missing,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
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

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
