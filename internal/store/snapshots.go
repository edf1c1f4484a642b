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

var snapshotColumns = []string{
	"id", "document_id", "seq", "body", "last_action", "content_hash", "run_id", "action", "created_at",
}

// appendSnapshot records doc's current body as the next entry of its
// version log.
func appendSnapshot(ctx context.Context, tx *sql.Tx, doc ir.Document, runID, action string, at time.Time) (ir.Snapshot, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE document_id = ?`, doc.ID,
	).Scan(&seq); err != nil {
		return ir.Snapshot{}, fmt.Errorf("next snapshot seq: %w", err)
	}

	snap := ir.Snapshot{
		DocumentID:  doc.ID,
		Seq:         seq,
		Body:        doc.Body,
		LastAction:  doc.LastAction,
		ContentHash: ir.ContentHash(doc.Body),
		RunID:       runID,
		Action:      action,
		CreatedAt:   at.UTC(),
	}
	query, args, err := sq.Insert("snapshots").
		Columns(snapshotColumns[1:]...).
		Values(snap.DocumentID, snap.Seq, snap.Body, snap.LastAction, snap.ContentHash,
			snap.RunID, snap.Action, toNanos(at)).
		ToSql()
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return ir.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns a document's version log, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, documentID string) ([]ir.Snapshot, error) {
	query, args, err := sq.Select(snapshotColumns...).
		From("snapshots").
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []ir.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// RestoreSnapshot rolls a document's body and last_action back to a
// snapshot. The current body is snapshotted first, so a restore can itself
// be undone. applied_actions is left untouched. Refused while the document
// has an active run.
func (s *Store) RestoreSnapshot(ctx context.Context, documentID string, snapshotID int64, at time.Time) (ir.Snapshot, error) {
	var saved ir.Snapshot
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		doc, err := getDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		active, err := activeRun(ctx, tx, documentID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if active != nil {
			return &ActiveRunError{DocumentID: documentID, RunID: active.ID}
		}

		query, args, err := sq.Select(snapshotColumns...).
			From("snapshots").
			Where(sq.Eq{"id": snapshotID, "document_id": documentID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		target, err := scanSnapshot(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("snapshot %d of %s: %w", snapshotID, documentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}

		if saved, err = appendSnapshot(ctx, tx, doc, "", "restore", at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET body = ?, last_action = ?, updated_at = ? WHERE id = ?`,
			target.Body, target.LastAction, toNanos(at), documentID,
		); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return ir.Snapshot{}, err
	}
	return saved, nil
}

func scanSnapshot(row rowScanner) (ir.Snapshot, error) {
	var (
		snap    ir.Snapshot
		created int64
	)
	if err := row.Scan(&snap.ID, &snap.DocumentID, &snap.Seq, &snap.Body, &snap.LastAction,
		&snap.ContentHash, &snap.RunID, &snap.Action, &created); err != nil {
		return ir.Snapshot{}, err
	}
	snap.CreatedAt = fromNanos(created)
	return snap, nil
}
