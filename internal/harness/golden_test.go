package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/ir"
)

func TestTrace_Canonical(t *testing.T) {
	r := sampleResult()
	r.Steps = []StepEvent{
		{Op: "create", RunID: "run-1", Status: ir.RunPending},
		{Op: "delete"},
		{Op: "cancel", RunID: "run-1", Error: "run_terminal"},
	}
	r.Runs[0].Results[0].Warnings = []string{`patch 0 skipped (no_match): "x"`}
	r.Runs[0].Results[0].Error = "hidden"
	r.Runs[0].ErrorMessage = "hidden"

	data, err := ir.MarshalCanonical(r.Trace("sample"))
	require.NoError(t, err)

	want := `{"calls":["a","b","b"],` +
		`"documents":[{"applied_actions":["a"],"body":"Intro.\n\nSection A.\n","id":"doc-1","last_action":"a","snapshots":1}],` +
		`"runs":[{"actions":["a","b","c"],"attempts":0,"cancel_requested":false,"current_index":1,"failed_action":"b","id":"run-1",` +
		`"results":[{"action":"a","changed":false,"cost":15,"estimated":false,"input_tokens":0,"output_tokens":0,"success":true,` +
		`"warnings":["patch 0 skipped (no_match): \"x\""]}],` +
		`"status":"failed","total_cost":15,"total_tokens":15}],` +
		`"scenario":"sample",` +
		`"steps":[{"index":0,"op":"create","run":"run-1","status":"pending"},{"op":"delete"},{"error":"run_terminal","op":"cancel","run":"run-1"}]}`
	assert.Equal(t, want, string(data))
	assert.NotContains(t, string(data), "hidden")
}

func TestTrace_EmptyResult(t *testing.T) {
	data, err := ir.MarshalCanonical(NewResult().Trace("empty"))
	require.NoError(t, err)
	assert.Equal(t, `{"calls":[],"documents":[],"runs":[],"scenario":"empty","steps":[]}`, string(data))
}
