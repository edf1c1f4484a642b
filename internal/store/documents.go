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

var documentColumns = []string{
	"id", "project_id", "title", "keywords", "body", "target_url", "faq",
	"structured_data", "internal_links", "assets", "last_action",
	"applied_actions", "last_action_at", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateDocument inserts a new document. Returns ErrExists if the id is taken.
func (s *Store) CreateDocument(ctx context.Context, doc ir.Document) error {
	keywords, err := marshalStrings(doc.Keywords)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	links, err := marshalStrings(doc.InternalLinks)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	assets, err := marshalStrings(doc.Assets)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	applied, err := marshalStrings(doc.AppliedActions)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	query, args, err := sq.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.ProjectID, doc.Title, keywords, doc.Body, doc.TargetURL, doc.FAQ,
			doc.StructuredData, links, assets, doc.LastAction, applied,
			toNanos(doc.LastActionAt), toNanos(doc.CreatedAt), toNanos(doc.UpdatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create document %s: %w", doc.ID, ErrExists)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument returns the current persisted state of a document.
func (s *Store) GetDocument(ctx context.Context, id string) (ir.Document, error) {
	return getDocument(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q queryRower, id string) (ir.Document, error) {
	query, args, err := sq.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return ir.Document{}, fmt.Errorf("get document: %w", err)
	}

	doc, err := scanDocument(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// UpdateBody records an explicit user edit of a document body. It does not
// touch last_action or applied_actions and takes no snapshot; engine writes
// go through CommitStep instead.
func (s *Store) UpdateBody(ctx context.Context, id, body string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = ? WHERE id = ?`, body, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("update body: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update body: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document and its snapshots. Runs that reference
// it are left in place.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DocumentFilter narrows ListDocuments. Zero fields match everything.
type DocumentFilter struct {
	ProjectID   string
	LastActions []string // documents whose last_action is in this set
	Limit       uint64
}

// ListDocuments returns documents oldest-first by last_action_at, ties broken
// by id. Returns an empty (non-nil) slice when nothing matches.
func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]ir.Document, error) {
	b := sq.Select(documentColumns...).
		From("documents").
		OrderBy("last_action_at ASC", "id ASC")
	if f.ProjectID != "" {
		b = b.Where(sq.Eq{"project_id": f.ProjectID})
	}
	if len(f.LastActions) > 0 {
		b = b.Where(sq.Eq{"last_action": f.LastActions})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []ir.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row rowScanner) (ir.Document, error) {
	var (
		doc                              ir.Document
		keywords, links, assets, applied string
		lastActionAt, created, updated   int64
	)
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.Title, &keywords, &doc.Body, &doc.TargetURL,
		&doc.FAQ, &doc.StructuredData, &links, &assets, &doc.LastAction, &applied,
		&lastActionAt, &created, &updated)
	if err != nil {
		return ir.Document{}, err
	}
	if doc.Keywords, err = unmarshalStrings(keywords); err != nil {
		return ir.Document{}, err
	}
	if doc.InternalLinks, err = unmarshalStrings(links); err != nil {
		return ir.Document{}, err
	}
	if doc.Assets, err = unmarshalStrings(assets); err != nil {
		return ir.Document{}, err
	}
	if doc.AppliedActions, err = unmarshalStrings(applied); err != nil {
		return ir.Document{}, err
	}
	doc.LastActionAt = fromNanos(lastActionAt)
	doc.CreatedAt = fromNanos(created)
	doc.UpdatedAt = fromNanos(updated)
	return doc, nil
}
