package compiler

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/roach88/contentpipe/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedType = "E200" // unsupported type for validation

	// ActionDef errors (E201-E203, E206)
	ErrUnknownMode     = "E201" // mode is not a known output mode
	ErrMissingTemplate = "E202" // generative action without template
	ErrTemplateParse   = "E203" // template does not parse
	ErrNegativePricing = "E206" // negative rate or fee

	// Catalog errors (E204-E205, E207-E208)
	ErrUnknownAction   = "E204" // pipeline references an undefined action
	ErrUnknownRoutine  = "E205" // local action names an unregistered routine
	ErrDuplicateAction = "E207" // action listed twice in one pipeline
	ErrEmptyPipeline   = "E208" // pipeline lists no actions
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// TemplateFuncs are the helpers available to action templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"join":  strings.Join,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"trim":  strings.TrimSpace,
	}
}

// ParseTemplate parses an action template with TemplateFuncs installed.
// Missing keys are errors at render time.
func ParseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Funcs(TemplateFuncs()).Option("missingkey=error").Parse(text)
}

// Validate validates a compiled definition against schema rules.
// Returns all errors found (does not fail-fast).
// Supports ActionDef and PipelineDef. Cross-references between them are
// checked by ValidateCatalog.
func Validate(v any) []ValidationError {
	switch def := v.(type) {
	case *ir.ActionDef:
		return validateAction(def)
	case ir.ActionDef:
		return validateAction(&def)
	case *ir.PipelineDef:
		return validatePipeline(def)
	case ir.PipelineDef:
		return validatePipeline(&def)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// ValidateCatalog validates every action and pipeline, then checks that
// pipelines reference defined actions and local actions name a registered
// routine.
func ValidateCatalog(spec *CatalogSpec, routines []string) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool, len(spec.Actions))
	registered := make(map[string]bool, len(routines))
	for _, r := range routines {
		registered[r] = true
	}

	for _, def := range spec.Actions {
		known[def.Name] = true
		errs = append(errs, validateAction(def)...)

		// E205: local routine must exist
		if def.Local && !registered[def.RoutineName()] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("action.%s.routine", def.Name),
				Message: fmt.Sprintf("local routine %q is not registered", def.RoutineName()),
				Code:    ErrUnknownRoutine,
			})
		}
	}

	for _, p := range spec.Pipelines {
		errs = append(errs, validatePipeline(p)...)

		// E204: every referenced action must be defined
		for i, name := range p.Actions {
			if !known[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("pipeline.%s.actions[%d]", p.Name, i),
					Message: fmt.Sprintf("unknown action %q", name),
					Code:    ErrUnknownAction,
				})
			}
		}
	}

	return errs
}

func validateAction(def *ir.ActionDef) []ValidationError {
	var errs []ValidationError
	prefix := "action." + def.Name

	// E201: known output mode
	if !def.Mode.Valid() {
		errs = append(errs, ValidationError{
			Field:   prefix + ".mode",
			Message: fmt.Sprintf("unknown mode %q", def.Mode),
			Code:    ErrUnknownMode,
		})
	}

	// E202: generative actions need a template
	if !def.Local && strings.TrimSpace(def.Template) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".template",
			Message: "template is required for non-local actions",
			Code:    ErrMissingTemplate,
		})
	}

	// E203: template must parse
	if def.Template != "" {
		if _, err := ParseTemplate(def.Name, def.Template); err != nil {
			errs = append(errs, ValidationError{
				Field:   prefix + ".template",
				Message: err.Error(),
				Code:    ErrTemplateParse,
			})
		}
	}

	// E206: pricing is non-negative
	p := def.Pricing
	if p.InputPerMillion < 0 || p.OutputPerMillion < 0 || p.FixedFee < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".pricing",
			Message: "pricing rates and fee must be non-negative",
			Code:    ErrNegativePricing,
		})
	}

	return errs
}

func validatePipeline(def *ir.PipelineDef) []ValidationError {
	var errs []ValidationError

	// E208: at least one action
	if len(def.Actions) == 0 {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("pipeline.%s.actions", def.Name),
			Message: "pipeline must list at least one action",
			Code:    ErrEmptyPipeline,
		})
	}

	// E207: no duplicates
	seen := make(map[string]bool, len(def.Actions))
	for i, name := range def.Actions {
		if seen[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.%s.actions[%d]", def.Name, i),
				Message: fmt.Sprintf("duplicate action %q", name),
				Code:    ErrDuplicateAction,
			})
		}
		seen[name] = true
	}

	return errs
}
