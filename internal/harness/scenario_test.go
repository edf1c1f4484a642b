package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/provider"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
catalog: catalog.cue
documents:
  - id: doc-1
    project: acme
    title: Title
    body: "Intro.\n"
replies:
  a:
    - text: '{"fragment": "A"}'
      input_tokens: 10
    - fail: timeout
max_attempts: 3
flow:
  - create: {document: doc-1, pipeline: abc}
  - process: {run: run-1, cancel_during: b}
    expect: {status: cancelled}
assertions:
  - type: run_state
    run: run-1
    current_index: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "catalog.cue"), scenario.CatalogPath())
	require.Len(t, scenario.Documents, 1)
	assert.Equal(t, "Intro.\n", scenario.Documents[0].Body)
	require.Len(t, scenario.Replies["a"], 2)
	assert.Equal(t, int64(10), scenario.Replies["a"][0].InputTokens)
	assert.Equal(t, provider.KindTimeout, scenario.Replies["a"][1].Fail)
	assert.Equal(t, 3, scenario.MaxAttempts)

	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, "create", scenario.Flow[0].op())
	assert.Equal(t, "abc", scenario.Flow[0].Create.Pipeline)
	assert.Equal(t, "process", scenario.Flow[1].op())
	assert.Equal(t, "b", scenario.Flow[1].Process.CancelDuring)
	assert.Equal(t, "cancelled", scenario.Flow[1].Expect.Status)

	require.Len(t, scenario.Assertions, 1)
	require.NotNil(t, scenario.Assertions[0].CurrentIndex)
	assert.Equal(t, 1, *scenario.Assertions[0].CurrentIndex)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_AbsoluteCatalog(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "catalog.cue")
	path := writeScenario(t, `
name: abs
catalog: `+abs+`
flow:
  - cancel: {run: run-1}
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, scenario.CatalogPath())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - cancel: {run: r}\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "catalog: c.cue\nflow:\n  - cancel: {run: r}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing catalog",
			yaml:    "name: x\nflow:\n  - cancel: {run: r}\n",
			wantErr: "catalog is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: x\ncatalog: c.cue\nflow: []\n",
			wantErr: "flow must have at least one step",
		},
		{
			name:    "two operations in one step",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - cancel: {run: r}\n    advance: {run: r}\n",
			wantErr: "exactly one of",
		},
		{
			name:    "step without operation",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - expect: {status: completed}\n",
			wantErr: "exactly one of",
		},
		{
			name:    "create without pipeline",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - create: {document: d}\n",
			wantErr: "create requires pipeline",
		},
		{
			name:    "duplicate document",
			yaml:    "name: x\ncatalog: c.cue\ndocuments:\n  - {id: d, project: p}\n  - {id: d, project: p}\nflow:\n  - cancel: {run: r}\n",
			wantErr: "duplicate id",
		},
		{
			name:    "document without project",
			yaml:    "name: x\ncatalog: c.cue\ndocuments:\n  - {id: d}\nflow:\n  - cancel: {run: r}\n",
			wantErr: "id and project are required",
		},
		{
			name:    "unknown assertion type",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - cancel: {run: r}\nassertions:\n  - type: trace_contains\n",
			wantErr: `unknown type "trace_contains"`,
		},
		{
			name:    "snapshot_count without count",
			yaml:    "name: x\ncatalog: c.cue\nflow:\n  - cancel: {run: r}\nassertions:\n  - type: snapshot_count\n    document: d\n",
			wantErr: "requires document and count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
