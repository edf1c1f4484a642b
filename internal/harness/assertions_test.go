package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/ir"
)

func intPtr(n int) *int           { return &n }
func int64Ptr(n int64) *int64     { return &n }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func sampleResult() *Result {
	r := NewResult()
	r.Runs = []*ir.Run{{
		ID:           "run-1",
		Actions:      []string{"a", "b", "c"},
		Status:       ir.RunFailed,
		CurrentIndex: 1,
		Results:      []ir.ActionResult{{Action: "a", Success: true, Cost: 15}},
		TotalCost:    15,
		TotalTokens:  15,
		FailedAction: "b",
	}}
	r.Documents = []DocumentState{{
		Document: ir.Document{
			ID:             "doc-1",
			Body:           "Intro.\n\nSection A.\n",
			LastAction:     "a",
			AppliedActions: []string{"a"},
		},
		Snapshots: 1,
	}}
	r.Calls = []string{"a", "b", "b"}
	return r
}

// ============================================================================
// Passing assertions
// ============================================================================

func TestEvaluateAssertions_AllPass(t *testing.T) {
	assertions := []Assertion{
		{
			Type:         AssertRunState,
			Run:          "run-1",
			Status:       "failed",
			CurrentIndex: intPtr(1),
			TotalCost:    floatPtr(15),
			TotalTokens:  int64Ptr(15),
			FailedAction: "b",
			Results:      intPtr(1),
		},
		{
			Type:           AssertDocument,
			Document:       "doc-1",
			LastAction:     "a",
			Body:           strPtr("Intro.\n\nSection A.\n"),
			BodyContains:   "Section A.",
			AppliedActions: []string{"a"},
		},
		{Type: AssertSnapshotCount, Document: "doc-1", Count: intPtr(1)},
		{Type: AssertProviderCalls, Actions: []string{"a", "b", "b"}},
	}

	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_ProviderCallsEmpty(t *testing.T) {
	r := NewResult()
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertProviderCalls}}))
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertProviderCalls, Actions: []string{}}}))
}

// ============================================================================
// Failing assertions
// ============================================================================

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "unknown run",
			assertion: Assertion{Type: AssertRunState, Run: "run-2"},
			wantErr:   "run run-2 was not created",
		},
		{
			name:      "status",
			assertion: Assertion{Type: AssertRunState, Run: "run-1", Status: "completed"},
			wantErr:   "run_state run-1: status expected completed, got failed",
		},
		{
			name:      "current index",
			assertion: Assertion{Type: AssertRunState, Run: "run-1", CurrentIndex: intPtr(3)},
			wantErr:   "current_index expected 3, got 1",
		},
		{
			name:      "total cost",
			assertion: Assertion{Type: AssertRunState, Run: "run-1", TotalCost: floatPtr(15.75)},
			wantErr:   "total_cost expected 15.75, got 15",
		},
		{
			name:      "failed action",
			assertion: Assertion{Type: AssertRunState, Run: "run-1", FailedAction: "c"},
			wantErr:   "failed_action expected c, got b",
		},
		{
			name:      "missing document",
			assertion: Assertion{Type: AssertDocument, Document: "doc-2"},
			wantErr:   "doc-2 does not exist",
		},
		{
			name:      "body",
			assertion: Assertion{Type: AssertDocument, Document: "doc-1", Body: strPtr("Intro.\n")},
			wantErr:   `body expected "Intro.\n", got "Intro.\n\nSection A.\n"`,
		},
		{
			name:      "body contains",
			assertion: Assertion{Type: AssertDocument, Document: "doc-1", BodyContains: "FAQ"},
			wantErr:   `to contain "FAQ"`,
		},
		{
			name:      "applied actions",
			assertion: Assertion{Type: AssertDocument, Document: "doc-1", AppliedActions: []string{"a", "b"}},
			wantErr:   "applied_actions expected [a b], got [a]",
		},
		{
			name:      "snapshot count",
			assertion: Assertion{Type: AssertSnapshotCount, Document: "doc-1", Count: intPtr(2)},
			wantErr:   "count expected 2, got 1",
		},
		{
			name:      "provider calls",
			assertion: Assertion{Type: AssertProviderCalls, Actions: []string{"a", "b"}},
			wantErr:   "calls expected [a b], got [a b b]",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "final_state"},
			wantErr:   `unknown assertion type "final_state"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
			assert.Contains(t, errs[0], "assertion 0:")
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
