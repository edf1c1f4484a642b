package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/contentpipe/internal/ir"
)

var runColumns = []string{
	"id", "document_id", "project_id", "pipeline", "actions", "status",
	"current_index", "results", "total_cost", "total_tokens", "cancel_requested",
	"attempts", "last_error", "error_message", "failed_action", "created_at",
	"started_at", "completed_at", "duration_ns",
}

var activeStatuses = []string{string(ir.RunPending), string(ir.RunRunning)}

// CreateRun inserts a new run. For document runs the document must exist and
// must not already have a pending or running run; the check and the insert
// happen in one transaction and the partial unique index backs them up.
func (s *Store) CreateRun(ctx context.Context, run *ir.Run) error {
	actions, err := marshalStrings(run.Actions)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	results, err := marshalResults(run.Results)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if run.DocumentID != "" {
			if _, err := getDocument(ctx, tx, run.DocumentID); err != nil {
				return err
			}
			active, err := activeRun(ctx, tx, run.DocumentID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if active != nil {
				return &ActiveRunError{DocumentID: run.DocumentID, RunID: active.ID}
			}
		}

		query, args, err := sq.Insert("runs").
			Columns(runColumns...).
			Values(run.ID, nullableString(run.DocumentID), run.ProjectID, run.Pipeline, actions,
				string(run.Status), run.CurrentIndex, results, run.TotalCost, run.TotalTokens,
				run.CancelRequested, run.Attempts, run.LastError, run.ErrorMessage, run.FailedAction,
				toNanos(run.CreatedAt), nullableNanos(run.StartedAt), nullableNanos(run.CompletedAt),
				int64(run.Duration)).
			ToSql()
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				if run.DocumentID != "" {
					if active, _ := activeRun(ctx, tx, run.DocumentID); active != nil {
						return &ActiveRunError{DocumentID: run.DocumentID, RunID: active.ID}
					}
				}
				return fmt.Errorf("create run %s: %w", run.ID, ErrExists)
			}
			return fmt.Errorf("create run: %w", err)
		}
		return nil
	})
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*ir.Run, error) {
	query, args, err := sq.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ActiveRun returns the pending or running run of a document.
func (s *Store) ActiveRun(ctx context.Context, documentID string) (*ir.Run, error) {
	return activeRun(ctx, s.db, documentID)
}

func activeRun(ctx context.Context, q queryRower, documentID string) (*ir.Run, error) {
	query, args, err := sq.Select(runColumns...).
		From("runs").
		Where(sq.Eq{"document_id": documentID, "status": activeStatuses}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	run, err := scanRun(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active run for %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}
	return run, nil
}

// UpdateRun persists the mutable state of a non-terminal run. The
// cancel_requested flag is owned by RequestCancel and is not written here.
// Returns ErrRunTerminal if the stored run is already terminal.
func (s *Store) UpdateRun(ctx context.Context, run *ir.Run) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return updateRun(ctx, tx, run)
	})
}

func updateRun(ctx context.Context, tx *sql.Tx, run *ir.Run) error {
	results, err := marshalResults(run.Results)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	query, args, err := sq.Update("runs").
		SetMap(map[string]any{
			"status":        string(run.Status),
			"current_index": run.CurrentIndex,
			"results":       results,
			"total_cost":    run.TotalCost,
			"total_tokens":  run.TotalTokens,
			"attempts":      run.Attempts,
			"last_error":    run.LastError,
			"error_message": run.ErrorMessage,
			"failed_action": run.FailedAction,
			"started_at":    nullableNanos(run.StartedAt),
			"completed_at":  nullableNanos(run.CompletedAt),
			"duration_ns":   int64(run.Duration),
		}).
		Where(sq.Eq{"id": run.ID, "status": activeStatuses}).
		ToSql()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return expectOneRow(ctx, tx, run.ID, query, args...)
}

// expectOneRow executes a guarded run UPDATE and distinguishes a missing run
// from a terminal one when nothing matched.
func expectOneRow(ctx context.Context, tx *sql.Tx, runID, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 1 {
		return nil
	}
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, runID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return fmt.Errorf("run %s is %s: %w", runID, status, ErrRunTerminal)
}

// RequestCancel sets the cancellation flag on a non-terminal run. The flag
// is observed by the engine at the next action boundary.
func (s *Store) RequestCancel(ctx context.Context, runID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return expectOneRow(ctx, tx, runID,
			`UPDATE runs SET cancel_requested = 1 WHERE id = ? AND status IN ('pending', 'running')`, runID)
	})
}

// CancelRequested reads the cancellation flag straight from the store.
func (s *Store) CancelRequested(ctx context.Context, runID string) (bool, error) {
	var flag bool
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM runs WHERE id = ?`, runID).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("cancel requested: %w", err)
	}
	return flag, nil
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Statuses   []ir.RunStatus
	DocumentID string
	ProjectID  string
	Limit      uint64
}

// ListRuns returns runs oldest-first (created_at, then id).
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]*ir.Run, error) {
	b := sq.Select(runColumns...).From("runs").OrderBy("created_at ASC", "id ASC")
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		b = b.Where(sq.Eq{"status": statuses})
	}
	if f.DocumentID != "" {
		b = b.Where(sq.Eq{"document_id": f.DocumentID})
	}
	if f.ProjectID != "" {
		b = b.Where(sq.Eq{"project_id": f.ProjectID})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []*ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// StepCommit is one successful action ready to be made durable.
type StepCommit struct {
	Run        *ir.Run // run state after the step (index already advanced)
	DocumentID string
	BaseHash   string // content hash of the body the step read
	Body       string // new body
	Action     string
	At         time.Time
}

// CommitStep atomically snapshots the current body, writes the new body,
// appends the action to applied_actions, sets last_action, and persists
// the run. Returns ErrStaleBody (and writes nothing) if the stored body no
// longer matches BaseHash.
func (s *Store) CommitStep(ctx context.Context, c StepCommit) (ir.Snapshot, error) {
	var snap ir.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, c.DocumentID)
		if err != nil {
			return err
		}
		if ir.ContentHash(doc.Body) != c.BaseHash {
			return fmt.Errorf("document %s: %w", c.DocumentID, ErrStaleBody)
		}

		snap, err = appendSnapshot(ctx, tx, doc, c.Run.ID, c.Action, c.At)
		if err != nil {
			return err
		}

		applied, err := marshalStrings(append(doc.AppliedActions, c.Action))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET body = ?, last_action = ?, applied_actions = ?, last_action_at = ?, updated_at = ?
			WHERE id = ?
		`, c.Body, c.Action, applied, toNanos(c.At), toNanos(c.At), c.DocumentID); err != nil {
			return fmt.Errorf("commit step: %w", err)
		}

		return updateRun(ctx, tx, c.Run)
	})
	if err != nil {
		return ir.Snapshot{}, err
	}
	return snap, nil
}

func scanRun(row rowScanner) (*ir.Run, error) {
	var (
		run                ir.Run
		documentID         sql.NullString
		actions, results   string
		status             string
		created            int64
		started, completed sql.NullInt64
		duration           int64
	)
	err := row.Scan(&run.ID, &documentID, &run.ProjectID, &run.Pipeline, &actions, &status,
		&run.CurrentIndex, &results, &run.TotalCost, &run.TotalTokens, &run.CancelRequested,
		&run.Attempts, &run.LastError, &run.ErrorMessage, &run.FailedAction, &created,
		&started, &completed, &duration)
	if err != nil {
		return nil, err
	}
	run.DocumentID = documentID.String
	run.Status = ir.RunStatus(status)
	if run.Actions, err = unmarshalStrings(actions); err != nil {
		return nil, err
	}
	if run.Results, err = unmarshalResults(results); err != nil {
		return nil, err
	}
	run.CreatedAt = fromNanos(created)
	run.StartedAt = timePtr(started)
	run.CompletedAt = timePtr(completed)
	run.Duration = time.Duration(duration)
	return &run, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
