package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/contentpipe/internal/ir"
)

// CompileAction parses a CUE value into an ActionDef.
// The action name is taken from the value's last path selector.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`action: "add-faq": { mode: "insert_bottom", template: "..." }`)
//	def, err := CompileAction(v.LookupPath(cue.ParsePath(`action."add-faq"`)))
func CompileAction(v cue.Value) (*ir.ActionDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ir.ActionDef{
		Name:             lastLabel(v),
		RequiresDocument: true,
	}

	// mode (required)
	modeVal := v.LookupPath(cue.ParsePath("mode"))
	if !modeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("action.%s.mode", def.Name),
			Message: "mode is required",
			Pos:     v.Pos(),
		}
	}
	mode, err := modeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Mode = ir.OutputMode(mode)

	if def.Local, err = optionalBool(v, "local", false); err != nil {
		return nil, err
	}
	if def.Forcible, err = optionalBool(v, "forcible", false); err != nil {
		return nil, err
	}
	if def.RequiresDocument, err = optionalBool(v, "requires_document", true); err != nil {
		return nil, err
	}
	if def.RequireChanges, err = optionalBool(v, "require_changes", false); err != nil {
		return nil, err
	}
	if def.Routine, err = optionalString(v, "routine"); err != nil {
		return nil, err
	}
	if def.Template, err = optionalString(v, "template"); err != nil {
		return nil, err
	}
	if def.System, err = optionalString(v, "system"); err != nil {
		return nil, err
	}
	if def.Accepts, err = optionalStrings(v, "accepts"); err != nil {
		return nil, err
	}

	pricingVal := v.LookupPath(cue.ParsePath("pricing"))
	if pricingVal.Exists() {
		if def.Pricing.InputPerMillion, err = optionalFloat(pricingVal, "input_per_million"); err != nil {
			return nil, err
		}
		if def.Pricing.OutputPerMillion, err = optionalFloat(pricingVal, "output_per_million"); err != nil {
			return nil, err
		}
		if def.Pricing.FixedFee, err = optionalFloat(pricingVal, "fixed_fee"); err != nil {
			return nil, err
		}
	}

	return def, nil
}

// CompilePipeline parses a CUE value into a PipelineDef.
//
// Pipeline-level exclusions are written as
//
//	exclude: ["add-faq"]
//	exclude_sections: blog: ["add-schema"]
func CompilePipeline(v cue.Value) (*ir.PipelineDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &ir.PipelineDef{Name: lastLabel(v)}

	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("pipeline.%s.actions", def.Name),
			Message: "actions are required",
			Pos:     v.Pos(),
		}
	}
	var err error
	if def.Actions, err = stringList(actionsVal); err != nil {
		return nil, err
	}
	if def.Exclusions.Global, err = optionalStrings(v, "exclude"); err != nil {
		return nil, err
	}
	if def.Exclusions.Sections, err = optionalSectionMap(v, "exclude_sections"); err != nil {
		return nil, err
	}

	return def, nil
}

func lastLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].Unquoted()
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return def, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalFloat(v cue.Value, field string) (float64, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, nil
	}
	n, err := f.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	return stringList(f)
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalSectionMap(v cue.Value, field string) (map[string][]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string][]string)
	for iter.Next() {
		names, err := stringList(iter.Value())
		if err != nil {
			return nil, err
		}
		out[iter.Selector().Unquoted()] = names
	}
	return out, nil
}
