package harness

import (
	"github.com/roach88/contentpipe/internal/ir"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool

	// Steps records one event per flow step.
	Steps []StepEvent

	// Runs are the final states of the runs created by the flow, in
	// creation order.
	Runs []*ir.Run

	// Documents are the final states of the seeded documents, in seed
	// order. Deleted documents are absent.
	Documents []DocumentState

	// Calls are the actions the provider was called for, in order.
	Calls []string

	// Errors lists failed expectations and assertions.
	Errors []string
}

// StepEvent is what one flow step observed.
type StepEvent struct {
	Op           string
	RunID        string
	Status       ir.RunStatus // "" when the step has no run
	CurrentIndex int
	Error        string // error kind, "" on success
}

// DocumentState is a document with its snapshot count.
type DocumentState struct {
	ir.Document
	Snapshots int
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepEvent{},
		Calls:  []string{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run returns the final state of the run with the given id.
func (r *Result) Run(id string) (*ir.Run, bool) {
	for _, run := range r.Runs {
		if run.ID == id {
			return run, true
		}
	}
	return nil, false
}

// Document returns the final state of the document with the given id.
func (r *Result) Document(id string) (DocumentState, bool) {
	for _, d := range r.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return DocumentState{}, false
}
