package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/contentpipe/internal/catalog"
	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/executor"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/jobs"
	"github.com/roach88/contentpipe/internal/provider"
	"github.com/roach88/contentpipe/internal/store"
	"github.com/roach88/contentpipe/internal/testutil"
)

// Harness executes one scenario against a real engine, store and job
// runner. Only the provider is scripted.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	runner   *jobs.Runner
	scripted *provider.Scripted
	hook     *cancelHook
	clock    *testutil.StepClock
	runIDs   []string
}

// Option configures Run.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger routes engine and runner logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database in a temporary directory with a
// step clock and sequential run ids (run-1, run-2, ...), so identical
// scenarios produce identical results.
//
// A returned error means the scenario could not be set up (bad catalog,
// store failure); step and assertion failures are reported in the result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	cat, err := catalog.Load(scenario.CatalogPath(), routineNames())
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	dir, err := os.MkdirTemp("", "contentpipe-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		scripted: provider.NewScripted(),
		clock:    testutil.NewStepClock(testutil.Epoch, time.Second),
	}
	for action, replies := range scenario.Replies {
		h.scripted.Push(action, replies...)
	}
	h.hook = &cancelHook{Client: h.scripted}

	exec := executor.New(cat, h.hook, executor.WithLogger(cfg.logger))
	h.engine = engine.New(st, cat, exec,
		engine.WithClock(h.clock),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("run")),
		engine.WithLogger(cfg.logger))
	h.hook.cancel = h.engine.Cancel
	h.runner = jobs.New(h.engine,
		jobs.WithPolicy(jobs.BackoffPolicy{MaxAttempts: scenario.MaxAttempts}),
		jobs.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		jobs.WithLogger(cfg.logger))

	if err := h.seed(ctx, scenario.Documents); err != nil {
		return nil, fmt.Errorf("failed to seed documents: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		event, err := h.execute(ctx, step)
		event.Error = errorKind(err)
		result.Steps = append(result.Steps, event)
		checkExpect(result, i, step, event, err)
	}
	if h.hook.err != nil {
		result.AddError(fmt.Sprintf("cancel hook: %v", h.hook.err))
	}

	if err := h.collect(ctx, scenario.Documents, result); err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) seed(ctx context.Context, seeds []DocumentSeed) error {
	for _, s := range seeds {
		now := h.clock.Now()
		lastAction := s.LastAction
		if lastAction == "" {
			lastAction = "generate"
		}
		keywords := s.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		doc := ir.Document{
			ID:             s.ID,
			ProjectID:      s.Project,
			Title:          s.Title,
			Keywords:       keywords,
			Body:           s.Body,
			TargetURL:      s.TargetURL,
			LastAction:     lastAction,
			AppliedActions: []string{},
			LastActionAt:   now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := h.store.CreateDocument(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// execute performs one flow step. The event carries the run state the step
// observed; its Error field is filled in by the caller.
func (h *Harness) execute(ctx context.Context, step FlowStep) (StepEvent, error) {
	event := StepEvent{Op: step.op()}

	switch {
	case step.Create != nil:
		run, err := h.engine.CreateRun(ctx, engine.CreateRunRequest{
			DocumentID: step.Create.Document,
			ProjectID:  step.Create.Project,
			Pipeline:   step.Create.Pipeline,
			Enhance:    step.Create.Enhance,
		})
		if err != nil {
			return event, err
		}
		h.runIDs = append(h.runIDs, run.ID)
		return observe(event, run), nil

	case step.Advance != nil:
		h.hook.arm(step.Advance.CancelDuring, step.Advance.Run)
		defer h.hook.arm("", "")
		run, err := h.engine.Advance(ctx, step.Advance.Run)
		event.RunID = step.Advance.Run
		return observe(event, run), err

	case step.Process != nil:
		h.hook.arm(step.Process.CancelDuring, step.Process.Run)
		defer h.hook.arm("", "")
		run, err := h.runner.Process(ctx, step.Process.Run)
		event.RunID = step.Process.Run
		return observe(event, run), err

	case step.Cancel != nil:
		event.RunID = step.Cancel.Run
		if err := h.engine.Cancel(ctx, step.Cancel.Run); err != nil {
			return event, err
		}
		run, err := h.store.GetRun(ctx, step.Cancel.Run)
		return observe(event, run), err

	case step.Edit != nil:
		return event, h.store.UpdateBody(ctx, step.Edit.Document, step.Edit.Body, h.clock.Now())

	case step.Delete != nil:
		return event, h.store.DeleteDocument(ctx, step.Delete.Document)
	}
	return event, errors.New("empty step")
}

// observe copies the run's status into event. run may be nil.
func observe(event StepEvent, run *ir.Run) StepEvent {
	if run == nil {
		return event
	}
	event.RunID = run.ID
	event.Status = run.Status
	event.CurrentIndex = run.CurrentIndex
	return event
}

func checkExpect(result *Result, i int, step FlowStep, event StepEvent, err error) {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{}
	}
	if event.Error != want.Error {
		msg := fmt.Sprintf("flow[%d] %s: expected error %q, got %q", i, event.Op, want.Error, event.Error)
		if err != nil {
			msg += fmt.Sprintf(" (%v)", err)
		}
		result.AddError(msg)
	}
	if want.Status != "" && string(event.Status) != want.Status {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected status %q, got %q", i, event.Op, want.Status, event.Status))
	}
}

func (h *Harness) collect(ctx context.Context, seeds []DocumentSeed, result *Result) error {
	for _, id := range h.runIDs {
		run, err := h.store.GetRun(ctx, id)
		if err != nil {
			return err
		}
		result.Runs = append(result.Runs, run)
	}

	for _, s := range seeds {
		doc, err := h.store.GetDocument(ctx, s.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		snaps, err := h.store.ListSnapshots(ctx, s.ID)
		if err != nil {
			return err
		}
		result.Documents = append(result.Documents, DocumentState{Document: doc, Snapshots: len(snaps)})
	}

	for _, call := range h.scripted.Calls() {
		result.Calls = append(result.Calls, call.Action)
	}
	return nil
}

// errorKind names the class of a step error for expectations and traces.
func errorKind(err error) string {
	var active *store.ActiveRunError
	switch {
	case err == nil:
		return ""
	case engine.IsRetryable(err):
		return "retryable"
	case errors.Is(err, engine.ErrConflict):
		return "conflict"
	case errors.Is(err, engine.ErrDocumentGone):
		return "document_gone"
	case errors.Is(err, engine.ErrRunNotFound):
		return "run_not_found"
	case errors.Is(err, engine.ErrRunTerminal):
		return "run_terminal"
	case engine.IsConfigError(err):
		return "config"
	case errors.As(err, &active):
		return "active_run"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	}
	return "error"
}

// cancelHook requests cancellation of a run when the provider receives the
// request for an armed action, simulating a cancel that arrives while the
// action is in flight.
type cancelHook struct {
	provider.Client
	cancel func(ctx context.Context, runID string) error

	mu     sync.Mutex
	action string
	runID  string
	err    error
}

func (h *cancelHook) arm(action, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.action = action
	h.runID = runID
}

func (h *cancelHook) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	h.mu.Lock()
	action, runID := h.action, h.runID
	h.mu.Unlock()

	if action != "" && req.Action == action {
		if err := h.cancel(ctx, runID); err != nil {
			h.mu.Lock()
			h.err = err
			h.mu.Unlock()
		}
	}
	return h.Client.Generate(ctx, req)
}

func routineNames() []string {
	routines := executor.DefaultRoutines()
	names := make([]string, 0, len(routines))
	for name := range routines {
		names = append(names, name)
	}
	return names
}
