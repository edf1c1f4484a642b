package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/ir"
)

func TestCompileActionBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		action: "add-citations": {
			mode: "replace_patches"
			forcible: true
			require_changes: true
			pricing: {input_per_million: 3, output_per_million: 15.5, fixed_fee: 0.01}
			accepts: ["generate", "add-faq"]
			system: "You are an editor."
			template: "Add citations to: {{.Body}}"
		}
	`)
	require.NoError(t, v.Err())

	def, err := CompileAction(v.LookupPath(cue.ParsePath(`action."add-citations"`)))
	require.NoError(t, err)

	assert.Equal(t, "add-citations", def.Name)
	assert.Equal(t, ir.ModeReplacePatches, def.Mode)
	assert.False(t, def.Local)
	assert.True(t, def.Forcible)
	assert.True(t, def.RequiresDocument, "requires_document defaults to true")
	assert.True(t, def.RequireChanges)
	assert.Equal(t, ir.Pricing{InputPerMillion: 3, OutputPerMillion: 15.5, FixedFee: 0.01}, def.Pricing)
	assert.Equal(t, []string{"generate", "add-faq"}, def.Accepts)
	assert.Equal(t, "You are an editor.", def.System)
	assert.Equal(t, "Add citations to: {{.Body}}", def.Template)
}

func TestCompileActionLocal(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		action: anchors: {
			mode: "replace_whole"
			local: true
			routine: "heading-anchors"
		}
	`)
	require.NoError(t, v.Err())

	def, err := CompileAction(v.LookupPath(cue.ParsePath("action.anchors")))
	require.NoError(t, err)

	assert.True(t, def.Local)
	assert.Equal(t, "heading-anchors", def.RoutineName())
	assert.Zero(t, def.Pricing)
}

func TestCompileActionMissingMode(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		action: bad: {
			template: "x"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileAction(v.LookupPath(cue.ParsePath("action.bad")))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "action.bad.mode", compileErr.Field)
	assert.Contains(t, compileErr.Message, "mode is required")
}

func TestCompileActionWrongType(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		action: bad: {
			mode: "replace_whole"
			local: "yes"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileAction(v.LookupPath(cue.ParsePath("action.bad")))
	require.Error(t, err)
}

func TestCompilePipeline(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		pipeline: default: {
			actions: ["heading-anchors", "add-citations", "add-faq"]
			exclude: ["add-faq"]
			exclude_sections: blog: ["add-citations"]
		}
	`)
	require.NoError(t, v.Err())

	def, err := CompilePipeline(v.LookupPath(cue.ParsePath("pipeline.default")))
	require.NoError(t, err)

	assert.Equal(t, "default", def.Name)
	assert.Equal(t, []string{"heading-anchors", "add-citations", "add-faq"}, def.Actions)
	assert.Equal(t, []string{"add-faq"}, def.Exclusions.Global)
	assert.Equal(t, map[string][]string{"blog": {"add-citations"}}, def.Exclusions.Sections)
}

func TestCompilePipelineMissingActions(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`pipeline: empty: {exclude: []}`)
	require.NoError(t, v.Err())

	_, err := CompilePipeline(v.LookupPath(cue.ParsePath("pipeline.empty")))
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "pipeline.empty.actions", compileErr.Field)
}

func TestCompileCatalog(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		fragments: style: "Write in plain English."
		exclusions: global: ["legacy-step"]
		exclusions: sections: blog: ["add-faq"]

		action: "heading-anchors": {mode: "replace_whole", local: true}
		action: "add-faq": {mode: "insert_bottom", template: "FAQ for {{.Title}}"}

		pipeline: default: {actions: ["heading-anchors", "add-faq"]}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileCatalog(v)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"style": "Write in plain English."}, spec.Fragments)
	assert.Equal(t, []string{"legacy-step"}, spec.Exclusions.Global)
	assert.Equal(t, []string{"add-faq"}, spec.Exclusions.Sections["blog"])

	require.Len(t, spec.Actions, 2)
	assert.Equal(t, "heading-anchors", spec.Actions[0].Name)
	assert.Equal(t, "add-faq", spec.Actions[1].Name)

	require.Len(t, spec.Pipelines, 1)
	assert.Equal(t, "default", spec.Pipelines[0].Name)
}

func TestCompileCatalogPropagatesCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		action: x: {mode: "replace_whole"}
		action: x: {mode: "insert_top"}
	`)

	_, err := CompileCatalog(v)
	require.Error(t, err)
}
