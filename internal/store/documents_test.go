package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc := createTestDocument("d1", "Body <b>&</b>", "generate", testEpoch)
	doc.FAQ = "Q?"
	doc.InternalLinks = []string{"/a", "/b"}
	mustCreateDocument(t, s, doc)

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc.Body, got.Body)
	assert.Equal(t, []string{"k1", "k2"}, got.Keywords)
	assert.Equal(t, []string{"/a", "/b"}, got.InternalLinks)
	assert.Equal(t, []string{}, got.Assets)
	assert.Equal(t, "Q?", got.FAQ)
	assert.Equal(t, "generate", got.LastAction)
	assert.True(t, got.LastActionAt.Equal(testEpoch))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}

func TestCreateDocumentDuplicate(t *testing.T) {
	s := createTestStore(t)
	doc := createTestDocument("d1", "x", "", testEpoch)
	mustCreateDocument(t, s, doc)

	err := s.CreateDocument(context.Background(), doc)
	assert.ErrorIs(t, err, ErrExists)
}

func TestGetDocumentNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreateDocument(t, s, createTestDocument("d1", "x", "", testEpoch))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	_, err := s.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteDocument(ctx, "d1"), ErrNotFound)
}

func TestListDocumentsOrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreateDocument(t, s, createTestDocument("c", "x", "generate", testEpoch.Add(2*time.Hour)))
	mustCreateDocument(t, s, createTestDocument("b", "x", "plan-add", testEpoch))
	mustCreateDocument(t, s, createTestDocument("a", "x", "plan-import", testEpoch))
	mustCreateDocument(t, s, createTestDocument("d", "x", "plan-import", testEpoch.Add(time.Hour)))

	other := createTestDocument("z", "x", "plan-import", testEpoch.Add(-time.Hour))
	other.ProjectID = "other"
	mustCreateDocument(t, s, other)

	all, err := s.ListDocuments(ctx, DocumentFilter{ProjectID: "proj"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d", "c"}, docIDs(all), "oldest first, ties by id")

	eligible, err := s.ListDocuments(ctx, DocumentFilter{
		ProjectID:   "proj",
		LastActions: []string{"plan-import", "plan-add"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "d"}, docIDs(eligible))

	limited, err := s.ListDocuments(ctx, DocumentFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, docIDs(limited))

	none, err := s.ListDocuments(ctx, DocumentFilter{LastActions: []string{"nothing"}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdateBody(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreateDocument(t, s, createTestDocument("d1", "before", "generate", testEpoch))

	at := testEpoch.Add(time.Hour)
	require.NoError(t, s.UpdateBody(ctx, "d1", "after", at))

	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "after", doc.Body)
	assert.Equal(t, "generate", doc.LastAction, "user edits are not actions")
	assert.True(t, doc.UpdatedAt.Equal(at))
	assert.True(t, doc.LastActionAt.Equal(testEpoch))

	assert.ErrorIs(t, s.UpdateBody(ctx, "ghost", "x", at), ErrNotFound)
}
