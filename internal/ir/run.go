package ir

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether s is absorbing (completed, failed, cancelled).
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// ActionResult records the outcome of one executed action within a run.
type ActionResult struct {
	Index        int       `json:"index"`
	Action       string    `json:"action"`
	Success      bool      `json:"success"`
	Changed      bool      `json:"changed"`
	Cost         float64   `json:"cost"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Estimated    bool      `json:"estimated"`
	Error        string    `json:"error,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	EditHash     string    `json:"edit_hash,omitempty"`
	Output       string    `json:"output,omitempty"` // project-level runs keep the generated fragment here
	CompletedAt  time.Time `json:"completed_at"`
}

// Tokens returns input plus output tokens.
func (r ActionResult) Tokens() int64 {
	return r.InputTokens + r.OutputTokens
}

// Run is one execution of a resolved pipeline against a document (or the
// project when DocumentID is empty).
//
// INVARIANTS:
//   - Actions never changes after creation
//   - CurrentIndex is non-decreasing and never exceeds len(Actions)
//   - Once Status is terminal no field changes
type Run struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id,omitempty"`
	ProjectID       string         `json:"project_id"`
	Pipeline        string         `json:"pipeline"`
	Actions         []string       `json:"actions"`
	Status          RunStatus      `json:"status"`
	CurrentIndex    int            `json:"current_index"`
	Results         []ActionResult `json:"results"`
	TotalCost       float64        `json:"total_cost"`
	TotalTokens     int64          `json:"total_tokens"`
	CancelRequested bool           `json:"cancel_requested"`
	Attempts        int            `json:"attempts"`
	LastError       string         `json:"last_error,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	FailedAction    string         `json:"failed_action,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Duration        time.Duration  `json:"duration"`
}

// CurrentAction returns the action at CurrentIndex, or "" when none remain.
func (r *Run) CurrentAction() string {
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Actions) {
		return ""
	}
	return r.Actions[r.CurrentIndex]
}

// Progress returns CurrentIndex / len(Actions) as a percentage in [0, 100].
func (r *Run) Progress() float64 {
	if len(r.Actions) == 0 {
		if r.Status == RunCompleted {
			return 100
		}
		return 0
	}
	return float64(r.CurrentIndex) / float64(len(r.Actions)) * 100
}

// Result returns the most recent result recorded for action.
func (r *Run) Result(action string) (ActionResult, bool) {
	for i := len(r.Results) - 1; i >= 0; i-- {
		if r.Results[i].Action == action {
			return r.Results[i], true
		}
	}
	return ActionResult{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r *Run) Clone() *Run {
	c := *r
	c.Actions = append([]string(nil), r.Actions...)
	c.Results = append([]ActionResult(nil), r.Results...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
