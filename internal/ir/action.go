package ir

// OutputMode selects how a generative response is merged into a document body.
type OutputMode string

const (
	ModeReplaceWhole   OutputMode = "replace_whole"
	ModeReplacePatches OutputMode = "replace_patches"
	ModeInsertTop      OutputMode = "insert_top"
	ModeInsertBottom   OutputMode = "insert_bottom"
	ModeInsertAtPoint  OutputMode = "insert_at_point"
)

// ValidModes lists every supported output mode in declaration order.
var ValidModes = []OutputMode{
	ModeReplaceWhole,
	ModeReplacePatches,
	ModeInsertTop,
	ModeInsertBottom,
	ModeInsertAtPoint,
}

// Valid reports whether m is a known output mode.
func (m OutputMode) Valid() bool {
	for _, v := range ValidModes {
		if m == v {
			return true
		}
	}
	return false
}

// Pricing is the per-action cost model. Rates are per million tokens.
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
	FixedFee         float64 `json:"fixed_fee"`
}

// ActionDef is an immutable action definition loaded from the catalog.
type ActionDef struct {
	Name             string     `json:"name"`
	Mode             OutputMode `json:"mode"`
	Local            bool       `json:"local"`
	Routine          string     `json:"routine,omitempty"` // local routine name; defaults to Name
	Forcible         bool       `json:"forcible"`
	RequiresDocument bool       `json:"requires_document"`
	RequireChanges   bool       `json:"require_changes"`
	Pricing          Pricing    `json:"pricing"`
	Template         string     `json:"template,omitempty"`
	System           string     `json:"system,omitempty"`

	// Accepts is the set of last_action values a document must carry to be
	// eligible for this action in a bulk selection. Empty means any.
	Accepts []string `json:"accepts,omitempty"`
}

// RoutineName returns the local routine that implements a local action.
func (a *ActionDef) RoutineName() string {
	if a.Routine != "" {
		return a.Routine
	}
	return a.Name
}

// ExclusionSet holds action names excluded globally and per URL section.
// Exclusions are additive.
type ExclusionSet struct {
	Global   []string            `json:"global,omitempty"`
	Sections map[string][]string `json:"sections,omitempty"`
}

// Excludes reports whether action is excluded for the given section.
func (e ExclusionSet) Excludes(action, section string) bool {
	for _, a := range e.Global {
		if a == action {
			return true
		}
	}
	if section == "" {
		return false
	}
	for _, a := range e.Sections[section] {
		if a == action {
			return true
		}
	}
	return false
}

// PipelineDef is an ordered list of action names plus its own exclusions.
type PipelineDef struct {
	Name       string       `json:"name"`
	Actions    []string     `json:"actions"`
	Exclusions ExclusionSet `json:"exclusions"`
}
