package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/contentpipe/internal/ir"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument creates a document with minimal required fields.
func createTestDocument(id, body, lastAction string, lastActionAt time.Time) ir.Document {
	return ir.Document{
		ID:             id,
		ProjectID:      "proj",
		Title:          "Title " + id,
		Keywords:       []string{"k1", "k2"},
		Body:           body,
		TargetURL:      "/blog/" + id,
		LastAction:     lastAction,
		AppliedActions: []string{},
		LastActionAt:   lastActionAt,
		CreatedAt:      testEpoch,
		UpdatedAt:      testEpoch,
	}
}

// createTestRun creates a pending run with minimal required fields.
func createTestRun(id, documentID string, actions ...string) *ir.Run {
	return &ir.Run{
		ID:         id,
		DocumentID: documentID,
		ProjectID:  "proj",
		Pipeline:   "default",
		Actions:    actions,
		Status:     ir.RunPending,
		Results:    []ir.ActionResult{},
		CreatedAt:  testEpoch,
	}
}

func mustCreateDocument(t *testing.T, s *Store, doc ir.Document) {
	t.Helper()
	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument(%s) failed: %v", doc.ID, err)
	}
}
