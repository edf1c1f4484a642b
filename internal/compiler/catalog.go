package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/contentpipe/internal/ir"
)

// CatalogSpec is the compiled form of an action catalog.
type CatalogSpec struct {
	Actions    []*ir.ActionDef
	Pipelines  []*ir.PipelineDef
	Exclusions ir.ExclusionSet
	Fragments  map[string]string
}

// CompileCatalog parses a whole catalog value:
//
//	fragments: <name>: string
//	exclusions: global: [...string]
//	exclusions: sections: <section>: [...string]
//	action: <name>: {...}
//	pipeline: <name>: {...}
//
// Actions and pipelines keep their declaration order.
func CompileCatalog(v cue.Value) (*CatalogSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &CatalogSpec{Fragments: make(map[string]string)}

	fragVal := v.LookupPath(cue.ParsePath("fragments"))
	if fragVal.Exists() {
		iter, err := fragVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Fragments[iter.Selector().Unquoted()] = s
		}
	}

	exVal := v.LookupPath(cue.ParsePath("exclusions"))
	if exVal.Exists() {
		var err error
		if spec.Exclusions.Global, err = optionalStrings(exVal, "global"); err != nil {
			return nil, err
		}
		if spec.Exclusions.Sections, err = optionalSectionMap(exVal, "sections"); err != nil {
			return nil, err
		}
	}

	actionVal := v.LookupPath(cue.ParsePath("action"))
	if actionVal.Exists() {
		iter, err := actionVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			def, err := CompileAction(iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Actions = append(spec.Actions, def)
		}
	}

	pipelineVal := v.LookupPath(cue.ParsePath("pipeline"))
	if pipelineVal.Exists() {
		iter, err := pipelineVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			def, err := CompilePipeline(iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Pipelines = append(spec.Pipelines, def)
		}
	}

	return spec, nil
}
