// Package jobs schedules and retries run advancement.
//
// The Runner gives at-least-once delivery of Advance calls: a run id is
// queued, a worker advances it, transient failures are retried with
// exponential backoff, and a run whose attempts are exhausted is abandoned
// (failed) rather than retried forever. Correctness relies on Advance being
// idempotent, not on the runner delivering exactly once.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/store"
)

// Advancer is the engine surface the runner drives.
type Advancer interface {
	Advance(ctx context.Context, runID string) (*ir.Run, error)
	Abandon(ctx context.Context, runID string, cause error) (*ir.Run, error)
}

// RunLister lists persisted runs; used to resume work after a restart.
type RunLister interface {
	ListRuns(ctx context.Context, f store.RunFilter) ([]*ir.Run, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner is a pool of workers advancing queued runs.
//
// Thread-safety model:
//   - Enqueue(), Stop(): safe from any goroutine
//   - Run(): call once; blocks until stopped
//   - Process(): safe from any goroutine; used directly for synchronous runs
type Runner struct {
	advancer Advancer
	policy   BackoffPolicy
	workers  int
	sleep    SleepFunc
	logger   *slog.Logger
	queue    *runQueue
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of concurrent workers. Default: 4.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithPolicy sets the retry policy. Default: DefaultBackoff.
func WithPolicy(p BackoffPolicy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithSleep replaces the backoff wait; tests use it to avoid real delays.
func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner. Call Run to start workers.
func New(adv Advancer, opts ...Option) *Runner {
	r := &Runner{
		advancer: adv,
		policy:   DefaultBackoff,
		workers:  4,
		sleep:    sleepContext,
		logger:   slog.Default(),
		queue:    newRunQueue(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue schedules runID for advancement. Returns false if the runner is
// stopped or the run is already queued or in flight.
func (r *Runner) Enqueue(runID string) bool {
	return r.queue.Enqueue(runID)
}

// Pending returns the number of queued runs not yet picked up.
func (r *Runner) Pending() int {
	return r.queue.Len()
}

// ResumePending queues every pending or running run, oldest first. Called at
// start-up so runs interrupted by a crash continue from their last
// committed action.
func (r *Runner) ResumePending(ctx context.Context, src RunLister) (int, error) {
	runs, err := src.ListRuns(ctx, store.RunFilter{
		Statuses: []ir.RunStatus{ir.RunPending, ir.RunRunning},
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, run := range runs {
		if r.Enqueue(run.ID) {
			n++
		}
	}
	r.logger.Info("resumed runs", "count", n)
	return n, nil
}

// Process advances one run to a terminal state, retrying transient failures
// per the policy. The attempt ceiling applies per action and counts the
// failures persisted on the run, so progress resets it and a resumed run
// keeps its budget. When attempts are exhausted the run is abandoned and
// the abandoned run is returned with a nil error. Non-retryable errors (run
// or document gone, store failures) are returned as is.
func (r *Runner) Process(ctx context.Context, runID string) (*ir.Run, error) {
	maxAttempts := r.policy.Attempts()
	for local := 1; ; local++ {
		run, err := r.advancer.Advance(ctx, runID)
		if err == nil {
			return run, nil
		}
		var re *engine.RetryableError
		if !errors.As(err, &re) {
			if errors.Is(err, engine.ErrDocumentGone) {
				r.logger.Warn("job discarded: document gone", "run_id", runID)
			} else if !errors.Is(err, context.Canceled) {
				r.logger.Error("advance failed", "run_id", runID, "error", err)
			}
			return run, err
		}

		attempt := local
		if re.Attempts > 0 {
			attempt = re.Attempts
		}
		if attempt >= maxAttempts {
			r.logger.Error("retries exhausted",
				"run_id", runID,
				"attempt", attempt,
				"error", err)
			return r.advancer.Abandon(ctx, runID, err)
		}

		delay := r.policy.Delay(attempt)
		r.logger.Warn("retrying run",
			"run_id", runID,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return run, err
		}
	}
}

// Run starts the workers and blocks until Stop is called and the queue is
// drained, or ctx is cancelled. In-flight runs are finished or left
// resumable; nothing is lost on cancellation because progress is persisted
// after every action.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting", "workers", r.workers)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	r.logger.Info("runner stopped")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (r *Runner) work(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}
		id, ok := r.queue.TryDequeue()
		if ok {
			run, err := r.Process(ctx, id)
			r.queue.Done(id)
			if err == nil && run != nil {
				r.logger.Debug("run processed",
					"worker", worker,
					"run_id", id,
					"status", run.Status)
			}
			continue
		}
		if r.queue.Drained() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-r.queue.Wait():
		}
	}
}

// Stop stops accepting runs. Workers finish the queued runs, then Run
// returns.
func (r *Runner) Stop() {
	r.queue.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
