package engine

import (
	"context"
	"time"

	"github.com/roach88/contentpipe/internal/accounting"
	"github.com/roach88/contentpipe/internal/ir"
)

// StatusView is the read-only projection of a run served to pollers.
type StatusView struct {
	RunID           string             `json:"run_id"`
	DocumentID      string             `json:"document_id,omitempty"`
	ProjectID       string             `json:"project_id"`
	Pipeline        string             `json:"pipeline"`
	Status          ir.RunStatus       `json:"status"`
	Progress        float64            `json:"progress"`
	CurrentIndex    int                `json:"current_index"`
	ActionCount     int                `json:"action_count"`
	CurrentAction   string             `json:"current_action,omitempty"`
	Actions         []string           `json:"actions"`
	Results         []ir.ActionResult  `json:"results"`
	Summary         accounting.Summary `json:"summary"`
	CancelRequested bool               `json:"cancel_requested"`
	Attempts        int                `json:"attempts,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	FailedAction    string             `json:"failed_action,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Duration        time.Duration      `json:"duration"`
}

// Status loads a run and projects it for status reporting.
func (e *Engine) Status(ctx context.Context, runID string) (StatusView, error) {
	run, err := e.loadRun(ctx, runID)
	if err != nil {
		return StatusView{}, err
	}
	return Project(run), nil
}

// Project builds the status view of a run.
func Project(run *ir.Run) StatusView {
	st := StatusView{
		RunID:           run.ID,
		DocumentID:      run.DocumentID,
		ProjectID:       run.ProjectID,
		Pipeline:        run.Pipeline,
		Status:          run.Status,
		Progress:        run.Progress(),
		CurrentIndex:    run.CurrentIndex,
		ActionCount:     len(run.Actions),
		Actions:         run.Actions,
		Results:         run.Results,
		Summary:         accounting.Summarize(run.Results),
		CancelRequested: run.CancelRequested,
		Attempts:        run.Attempts,
		LastError:       run.LastError,
		ErrorMessage:    run.ErrorMessage,
		FailedAction:    run.FailedAction,
		CreatedAt:       run.CreatedAt,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		Duration:        run.Duration,
	}
	if !run.Status.Terminal() {
		st.CurrentAction = run.CurrentAction()
	}
	return st
}
