package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/contentpipe/internal/accounting"
	"github.com/roach88/contentpipe/internal/catalog"
	"github.com/roach88/contentpipe/internal/executor"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/store"
)

// Engine owns the lifecycle of pipeline runs.
//
// The engine holds no per-run state in memory: every call reloads the run
// and the document from the store, so any number of workers may call
// Advance concurrently for different runs, and a crashed worker's run is
// resumed by simply calling Advance again.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// Advance calls for the same run are tolerated (the store's guarded
// updates and body hash check reject the loser) but the job runner
// de-duplicates them anyway.
type Engine struct {
	store    *store.Store
	catalog  *catalog.Catalog
	executor *executor.Executor
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for run timestamps. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over a store, a validated catalog and an executor.
func New(s *store.Store, cat *catalog.Catalog, exec *executor.Executor, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		catalog:  cat,
		executor: exec,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateRunRequest asks for a new run. An empty DocumentID creates a
// project-level run, which then requires ProjectID.
type CreateRunRequest struct {
	DocumentID string
	ProjectID  string
	Pipeline   string
	Enhance    bool // keep only forcible actions
}

// CreateRun resolves the pipeline for the target and persists a pending run
// with its action list frozen.
//
// Errors are synchronous and nothing is persisted when one is returned:
// *ConfigError for an unknown pipeline or an empty resolved list,
// ErrDocumentGone for a missing document, and *ConflictError (matching
// ErrConflict) if the document already has an active run.
func (e *Engine) CreateRun(ctx context.Context, req CreateRunRequest) (*ir.Run, error) {
	projectID := req.ProjectID
	var targetURL string
	if req.DocumentID != "" {
		doc, err := e.store.GetDocument(ctx, req.DocumentID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("create run: document %s: %w", req.DocumentID, ErrDocumentGone)
		}
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		projectID = doc.ProjectID
		targetURL = doc.TargetURL
	} else if projectID == "" {
		return nil, &ConfigError{
			Code:     ErrCodeMissingProject,
			Pipeline: req.Pipeline,
			Message:  "project-level run requires a project id",
		}
	}

	actions, err := e.catalog.Resolve(req.Pipeline, targetURL, catalog.ResolveOptions{
		Enhance:      req.Enhance,
		ProjectLevel: req.DocumentID == "",
	})
	if errors.Is(err, catalog.ErrUnknownPipeline) {
		return nil, &ConfigError{
			Code:     ErrCodeUnknownPipeline,
			Pipeline: req.Pipeline,
			Message:  "pipeline is not defined in the catalog",
			Err:      err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if len(actions) == 0 {
		return nil, &ConfigError{
			Code:     ErrCodeEmptyPipeline,
			Pipeline: req.Pipeline,
			Message:  "no actions remain after exclusions",
		}
	}

	run := &ir.Run{
		ID:         e.ids.Generate(),
		DocumentID: req.DocumentID,
		ProjectID:  projectID,
		Pipeline:   req.Pipeline,
		Actions:    actions,
		Status:     ir.RunPending,
		Results:    []ir.ActionResult{},
		CreatedAt:  e.clock.Now(),
	}

	if err := e.store.CreateRun(ctx, run); err != nil {
		var active *store.ActiveRunError
		if errors.As(err, &active) {
			return nil, &ConflictError{DocumentID: active.DocumentID, RunID: active.RunID}
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("create run: document %s: %w", req.DocumentID, ErrDocumentGone)
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	e.logger.Info("run created",
		"run_id", run.ID,
		"document_id", run.DocumentID,
		"pipeline", run.Pipeline,
		"actions", len(run.Actions))
	return run, nil
}

// Advance drives a run forward until it reaches a terminal state or hits a
// transient failure. It is the single entry point the job runner calls and
// is safe to call any number of times:
//   - a terminal run is returned unchanged
//   - a non-terminal run continues from CurrentIndex; committed actions are
//     never re-executed
//
// Action-level failures end the run as failed and are NOT returned; read
// them from the returned run. Returned errors are limited to
// *RetryableError (nothing committed, call again later), ErrRunNotFound,
// ErrDocumentGone (the run has been failed), context errors and store
// failures.
func (e *Engine) Advance(ctx context.Context, runID string) (*ir.Run, error) {
	run, err := e.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}

	if run.Status == ir.RunPending {
		now := e.clock.Now()
		run.Status = ir.RunRunning
		run.StartedAt = &now
		if err := e.store.UpdateRun(ctx, run); err != nil {
			return e.settle(ctx, run, err)
		}
		e.logger.Info("run started", "run_id", run.ID, "document_id", run.DocumentID)
	}

	for {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		if run.CurrentIndex >= len(run.Actions) {
			return e.finish(ctx, run, ir.RunCompleted)
		}

		cancelled, err := e.store.CancelRequested(ctx, run.ID)
		if err != nil {
			return run, fmt.Errorf("advance %s: %w", run.ID, err)
		}
		if cancelled {
			return e.finish(ctx, run, ir.RunCancelled)
		}

		done, err := e.step(ctx, run)
		if err != nil || done {
			return run, err
		}
	}
}

// step executes the action at run.CurrentIndex and commits it. done is true
// when the run reached a terminal state inside step.
func (e *Engine) step(ctx context.Context, run *ir.Run) (done bool, err error) {
	index := run.CurrentIndex
	name := run.Actions[index]
	log := e.logger.With("run_id", run.ID, "document_id", run.DocumentID, "action", name, "index", index)

	def, ok := e.catalog.Action(name)
	if !ok {
		cerr := &ConfigError{Code: ErrCodeUnknownAction, Action: name, Message: "action is no longer defined"}
		e.record(run, ir.ActionResult{Index: index, Action: name, Error: cerr.Error()})
		_, err := e.fail(ctx, run, name, cerr)
		return true, err
	}

	// Always read the persisted body; never a copy carried from the last step.
	var doc *ir.Document
	if run.DocumentID != "" {
		d, err := e.store.GetDocument(ctx, run.DocumentID)
		if errors.Is(err, store.ErrNotFound) {
			gone := fmt.Errorf("document %s: %w", run.DocumentID, ErrDocumentGone)
			e.record(run, ir.ActionResult{Index: index, Action: name, Error: gone.Error()})
			if _, ferr := e.fail(ctx, run, name, gone); ferr != nil {
				return true, ferr
			}
			return true, gone
		}
		if err != nil {
			return true, fmt.Errorf("advance %s: %w", run.ID, err)
		}
		doc = &d
	}

	log.Debug("executing action")
	out, execErr := e.executor.Execute(ctx, def, doc)
	now := e.clock.Now()

	result := ir.ActionResult{
		Index:        index,
		Action:       name,
		Cost:         out.Cost,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		Estimated:    out.Usage.Estimated,
		Warnings:     out.Warnings,
		EditHash:     out.EditHash,
		Changed:      out.Changed,
		CompletedAt:  now,
	}

	if execErr != nil {
		if ae, ok := executor.AsActionError(execErr); ok && ae.Transient() {
			return true, e.retryLater(ctx, run, name, execErr)
		}
		log.Error("action failed", "error", execErr)
		result.Error = execErr.Error()
		e.record(run, result)
		_, err := e.fail(ctx, run, name, execErr)
		return true, err
	}

	result.Success = true
	result.Output = out.Output
	e.record(run, result)
	run.CurrentIndex++
	run.Attempts = 0
	run.LastError = ""

	if doc == nil {
		if err := e.store.UpdateRun(ctx, run); err != nil {
			_, err = e.settle(ctx, run, err)
			return true, err
		}
		log.Info("action completed", "cost", result.Cost, "tokens", result.Tokens())
		return false, nil
	}

	_, err = e.store.CommitStep(ctx, store.StepCommit{
		Run:        run,
		DocumentID: doc.ID,
		BaseHash:   ir.ContentHash(doc.Body),
		Body:       out.Body,
		Action:     name,
		At:         now,
	})
	switch {
	case errors.Is(err, store.ErrStaleBody):
		// Discard the in-memory step; the store still holds the pre-step run.
		fresh, lerr := e.loadRun(ctx, run.ID)
		if lerr != nil {
			return true, lerr
		}
		*run = *fresh
		return true, e.retryLater(ctx, run, name, fmt.Errorf("action %s: %w", name, err))
	case errors.Is(err, store.ErrNotFound):
		gone := fmt.Errorf("document %s: %w", doc.ID, ErrDocumentGone)
		fresh, lerr := e.loadRun(ctx, run.ID)
		if lerr != nil {
			return true, lerr
		}
		*run = *fresh
		e.record(run, ir.ActionResult{Index: index, Action: name, Error: gone.Error(), CompletedAt: now})
		if _, ferr := e.fail(ctx, run, name, gone); ferr != nil {
			return true, ferr
		}
		return true, gone
	case err != nil:
		_, err = e.settle(ctx, run, err)
		return true, err
	}

	log.Info("action committed",
		"changed", result.Changed,
		"warnings", len(result.Warnings),
		"cost", result.Cost,
		"tokens", result.Tokens(),
		"estimated", result.Estimated)
	return false, nil
}

// record appends a result and refreshes the run's aggregate totals.
func (e *Engine) record(run *ir.Run, r ir.ActionResult) {
	if r.CompletedAt.IsZero() {
		r.CompletedAt = e.clock.Now()
	}
	run.Results = append(run.Results, r)
	sum := accounting.Summarize(run.Results)
	run.TotalCost = sum.TotalCost
	run.TotalTokens = sum.TotalTokens
}

// retryLater records a transient failure on the run without moving its
// index and returns the RetryableError for the job runner.
func (e *Engine) retryLater(ctx context.Context, run *ir.Run, action string, cause error) error {
	run.Attempts++
	run.LastError = cause.Error()
	e.logger.Warn("transient action failure",
		"run_id", run.ID,
		"action", action,
		"attempt", run.Attempts,
		"error", cause)
	if err := e.store.UpdateRun(ctx, run); err != nil {
		_, err = e.settle(ctx, run, err)
		return err
	}
	return &RetryableError{RunID: run.ID, Action: action, Attempts: run.Attempts, Err: cause}
}

// fail moves the run to failed, recording the offending action.
func (e *Engine) fail(ctx context.Context, run *ir.Run, action string, cause error) (*ir.Run, error) {
	run.ErrorMessage = cause.Error()
	run.FailedAction = action
	return e.finish(ctx, run, ir.RunFailed)
}

// finish moves the run to a terminal status and persists it.
func (e *Engine) finish(ctx context.Context, run *ir.Run, status ir.RunStatus) (*ir.Run, error) {
	now := e.clock.Now()
	run.Status = status
	run.CompletedAt = &now
	if run.StartedAt != nil {
		run.Duration = now.Sub(*run.StartedAt)
	}
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return e.settle(ctx, run, err)
	}

	attrs := []any{
		"run_id", run.ID,
		"document_id", run.DocumentID,
		"status", run.Status,
		"index", run.CurrentIndex,
		"total_cost", run.TotalCost,
		"total_tokens", run.TotalTokens,
		"duration", run.Duration,
	}
	if status == ir.RunFailed {
		attrs = append(attrs, "failed_action", run.FailedAction, "error", run.ErrorMessage)
		e.logger.Error("run failed", attrs...)
	} else {
		e.logger.Info("run finished", attrs...)
	}
	return run, nil
}

// settle handles a store write that lost a race with another writer. If the
// run became terminal meanwhile, the stored run wins and no error is
// reported; any other error is returned as is.
func (e *Engine) settle(ctx context.Context, run *ir.Run, err error) (*ir.Run, error) {
	if !errors.Is(err, store.ErrRunTerminal) {
		return run, fmt.Errorf("advance %s: %w", run.ID, err)
	}
	fresh, lerr := e.loadRun(ctx, run.ID)
	if lerr != nil {
		return run, lerr
	}
	*run = *fresh
	return run, nil
}

// Cancel requests cooperative cancellation. The flag is observed by Advance
// before the next action starts; an in-flight action is never interrupted
// and, if it commits, stays committed.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	err := e.store.RequestCancel(ctx, runID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("cancel %s: %w", runID, ErrRunNotFound)
	case errors.Is(err, store.ErrRunTerminal):
		return fmt.Errorf("cancel %s: %w", runID, ErrRunTerminal)
	case err != nil:
		return fmt.Errorf("cancel %s: %w", runID, err)
	}
	e.logger.Info("cancellation requested", "run_id", runID)
	return nil
}

// Abandon fails a run whose retries are exhausted. The current action is
// recorded as the failed action. A terminal run is returned unchanged.
func (e *Engine) Abandon(ctx context.Context, runID string, cause error) (*ir.Run, error) {
	run, err := e.loadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}
	if run.StartedAt == nil {
		now := e.clock.Now()
		run.StartedAt = &now
	}

	msg := "retries exhausted"
	if cause != nil {
		msg = fmt.Sprintf("retries exhausted: %v", cause)
	}
	run.ErrorMessage = msg
	run.FailedAction = run.CurrentAction()
	return e.finish(ctx, run, ir.RunFailed)
}

func (e *Engine) loadRun(ctx context.Context, runID string) (*ir.Run, error) {
	run, err := e.store.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return run, nil
}
