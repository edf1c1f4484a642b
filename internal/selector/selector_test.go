package selector

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/ir"
)

var epoch = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// agedDocs returns n eligible documents; doc-001 is the oldest.
func agedDocs(n int) []ir.Document {
	docs := make([]ir.Document, n)
	for i := range docs {
		docs[i] = ir.Document{
			ID:           fmt.Sprintf("doc-%03d", i+1),
			LastAction:   "plan-import",
			LastActionAt: epoch.Add(time.Duration(i) * time.Hour),
		}
	}
	return docs
}

func ids(docs []ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestEligible(t *testing.T) {
	docs := []ir.Document{
		{ID: "c", LastAction: "plan-add", LastActionAt: epoch.Add(time.Hour)},
		{ID: "b", LastAction: "plan-import", LastActionAt: epoch},
		{ID: "x", LastAction: "generate", LastActionAt: epoch.Add(-time.Hour)},
		{ID: "a", LastAction: "plan-import", LastActionAt: epoch},
		{ID: "y", LastAction: "", LastActionAt: epoch.Add(-2 * time.Hour)},
	}

	got := Eligible(docs, []string{"plan-import", "plan-add"})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got), "oldest first, ties by id")
	assert.Equal(t, "c", docs[0].ID, "input untouched")

	assert.Equal(t, []string{"y", "x", "a", "b", "c"}, ids(Eligible(docs, nil)), "no accepts admits every document")
	assert.Len(t, Eligible(docs, []string{}), 5)
	assert.Empty(t, Eligible(docs, []string{"publish"}))
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Selection
	}{
		{"1,3,5", Selection{Kind: KindIndices, Indices: []int{1, 3, 5}}},
		{" 2 , 2, 1 ", Selection{Kind: KindIndices, Indices: []int{2, 1}}},
		{"7", Selection{Kind: KindIndices, Indices: []int{7}}},
		{"51:50", Selection{Kind: KindRange, Start: 51, Count: 50}},
		{" 3 : 4 ", Selection{Kind: KindRange, Start: 3, Count: 4}},
		{"all", Selection{Kind: KindAll}},
		{"ALL", Selection{Kind: KindAll}},
		{"q", Selection{Kind: KindQuit}},
		{"Q", Selection{Kind: KindQuit}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			tt.want.Input = tt.input
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, input := range []string{"", "  ", "0", "-1", "1,,2", "a,b", "1:", ":5", "0:3", "3:0", "1:2:3", "some"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			var se *SelectionError
			require.True(t, errors.As(err, &se), "input %q", input)
			assert.Equal(t, input, se.Input)
		})
	}
}

// Scenario E: ranges address the full eligible set, not the display window.
func TestSelect_RangeBeyondWindow(t *testing.T) {
	eligible := agedDocs(120)

	got, err := Select("51:50", eligible, DefaultWindow)
	require.NoError(t, err)
	require.Len(t, got, 50)
	assert.Equal(t, "doc-051", got[0].ID)
	assert.Equal(t, "doc-100", got[49].ID)
}

func TestSelect_RangeTruncatedAtEnd(t *testing.T) {
	got, err := Select("118:10", agedDocs(120), DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-118", "doc-119", "doc-120"}, ids(got))

	_, err = Select("121:1", agedDocs(120), DefaultWindow)
	var se *SelectionError
	assert.True(t, errors.As(err, &se))
}

func TestSelect_RangeHugeCount(t *testing.T) {
	var got []ir.Document
	var err error
	require.NotPanics(t, func() {
		got, err = Select("2:9223372036854775807", agedDocs(120), DefaultWindow)
	})
	require.NoError(t, err)
	assert.Len(t, got, 119)
	assert.Equal(t, "doc-002", got[0].ID)
	assert.Equal(t, "doc-120", got[len(got)-1].ID)
}

func TestSelect_IndicesUseDisplayedWindow(t *testing.T) {
	eligible := agedDocs(120)

	got, err := Select("1,3,10", eligible, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-001", "doc-003", "doc-010"}, ids(got))

	_, err = Select("11", eligible, DefaultWindow)
	var se *SelectionError
	require.True(t, errors.As(err, &se), "index past the window is rejected")

	got, err = Select("11", eligible, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-011"}, ids(got))

	_, err = Select("4", agedDocs(3), DefaultWindow)
	assert.True(t, errors.As(err, &se), "short list shrinks the window")
}

func TestSelect_AllAndQuit(t *testing.T) {
	eligible := agedDocs(25)

	all, err := Select("all", eligible, DefaultWindow)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	all[0].ID = "mutated"
	assert.Equal(t, "doc-001", eligible[0].ID, "result does not alias the input")

	none, err := Select("q", eligible, DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, none)

	empty, err := Select("all", nil, DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWindow(t *testing.T) {
	assert.Len(t, Window(agedDocs(120), 0), DefaultWindow)
	assert.Len(t, Window(agedDocs(4), DefaultWindow), 4)
	assert.Len(t, Window(nil, DefaultWindow), 0)
}
