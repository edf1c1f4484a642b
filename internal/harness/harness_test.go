package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/provider"
	"github.com/roach88/contentpipe/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

// ============================================================================
// Golden scenarios
// ============================================================================

func TestScenarios_Golden(t *testing.T) {
	names := []string{
		"cite_patch",
		"cite_ambiguous",
		"retries_exhausted",
		"cancel_in_flight",
		"idempotent_resume",
		"document_deleted",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// ============================================================================
// Run
// ============================================================================

func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "idempotent_resume")

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	a, err := ir.MarshalCanonical(first.Trace(scenario.Name))
	require.NoError(t, err)
	b, err := ir.MarshalCanonical(second.Trace(scenario.Name))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ResultAccessors(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "retries_exhausted"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	run, ok := result.Run("run-1")
	require.True(t, ok)
	assert.Equal(t, ir.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "retries exhausted")

	doc, ok := result.Document("doc-1")
	require.True(t, ok)
	assert.Equal(t, 1, doc.Snapshots)

	_, ok = result.Run("run-9")
	assert.False(t, ok)
	_, ok = result.Document("ghost")
	assert.False(t, ok)
}

func TestRun_FailedExpectationIsReported(t *testing.T) {
	scenario := loadTestScenario(t, "cite_patch")
	scenario.Flow[1].Expect = &ExpectClause{Status: "failed"}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `flow[1] process: expected status "failed", got "completed"`)
}

func TestRun_UnexpectedErrorIsReported(t *testing.T) {
	scenario := loadTestScenario(t, "cite_patch")
	scenario.Flow = append(scenario.Flow, FlowStep{Cancel: &RunRef{Run: "run-1"}})

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `expected error "", got "run_terminal"`)
}

func TestRun_EditBetweenRuns(t *testing.T) {
	scenario := loadTestScenario(t, "cite_patch")
	body := "Edited by hand.\n"
	scenario.Flow = append(scenario.Flow,
		FlowStep{Edit: &EditStep{Document: "doc-1", Body: body}},
		FlowStep{Edit: &EditStep{Document: "ghost", Body: body}, Expect: &ExpectClause{Error: "not_found"}},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertDocument, Document: "doc-1", Body: &body, LastAction: "cite"},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "edit", result.Steps[2].Op)
}

func TestRun_TransientFailurePerActionCompletes(t *testing.T) {
	scenario := loadTestScenario(t, "retries_exhausted")
	scenario.Replies = map[string][]provider.Reply{}
	for _, action := range []string{"a", "b", "c"} {
		scenario.Replies[action] = []provider.Reply{
			{Fail: provider.KindRateLimit},
			{Text: `{"fragment": "Section ` + action + `."}`},
		}
	}
	scenario.Flow[1].Expect = &ExpectClause{Status: "completed"}
	scenario.Assertions = []Assertion{
		{Type: AssertRunState, Run: "run-1", Status: "completed", CurrentIndex: intPtr(3), Results: intPtr(3)},
		{Type: AssertProviderCalls, Actions: []string{"a", "a", "b", "b", "c", "c"}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	run, ok := result.Run("run-1")
	require.True(t, ok)
	assert.Equal(t, 0, run.Attempts)
}

func TestRun_BadCatalog(t *testing.T) {
	scenario := loadTestScenario(t, "cite_patch")
	scenario.Catalog = "missing.cue"

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog")
}

// ============================================================================
// errorKind
// ============================================================================

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&engine.RetryableError{RunID: "r", Action: "a", Err: errors.New("timeout")}, "retryable"},
		{&engine.ConflictError{DocumentID: "d", RunID: "r"}, "conflict"},
		{fmt.Errorf("x: %w", engine.ErrDocumentGone), "document_gone"},
		{fmt.Errorf("x: %w", engine.ErrRunNotFound), "run_not_found"},
		{fmt.Errorf("x: %w", engine.ErrRunTerminal), "run_terminal"},
		{&engine.ConfigError{Code: engine.ErrCodeUnknownPipeline, Pipeline: "p", Message: "m"}, "config"},
		{&store.ActiveRunError{DocumentID: "d", RunID: "r"}, "active_run"},
		{fmt.Errorf("x: %w", store.ErrNotFound), "not_found"},
		{context.Canceled, "context"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = strings.ReplaceAll(tt.err.Error(), " ", "_")
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}
