package ir

// Patch is a single surgical text substitution. Find must match the body
// verbatim exactly once for the patch to apply.
type Patch struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Edit is a parsed generative (or local) result, ready for the patch applier.
// It is a closed set: WholeEdit, PatchEdit, InsertEdit, AnchorEdit.
type Edit interface {
	// Mode returns the output mode this edit was parsed for.
	Mode() OutputMode
	isEdit()
}

// WholeEdit replaces the whole body.
type WholeEdit struct {
	Content string
}

// PatchEdit applies ordered find/replace patches.
type PatchEdit struct {
	Patches []Patch
}

// InsertEdit prepends or appends a fragment.
type InsertEdit struct {
	Fragment string
	Top      bool
}

// AnchorEdit inserts a fragment immediately after an existing anchor substring.
type AnchorEdit struct {
	Anchor   string
	Fragment string
}

func (WholeEdit) Mode() OutputMode { return ModeReplaceWhole }
func (PatchEdit) Mode() OutputMode { return ModeReplacePatches }
func (AnchorEdit) Mode() OutputMode { return ModeInsertAtPoint }

func (e InsertEdit) Mode() OutputMode {
	if e.Top {
		return ModeInsertTop
	}
	return ModeInsertBottom
}

func (WholeEdit) isEdit()  {}
func (PatchEdit) isEdit()  {}
func (InsertEdit) isEdit() {}
func (AnchorEdit) isEdit() {}

// EditObject converts an edit into a plain map for canonical hashing.
func EditObject(e Edit) map[string]any {
	obj := map[string]any{"mode": string(e.Mode())}
	switch v := e.(type) {
	case WholeEdit:
		obj["content"] = v.Content
	case PatchEdit:
		patches := make([]any, len(v.Patches))
		for i, p := range v.Patches {
			patches[i] = map[string]any{"find": p.Find, "replace": p.Replace}
		}
		obj["replacements"] = patches
	case InsertEdit:
		obj["fragment"] = v.Fragment
	case AnchorEdit:
		obj["anchor"] = v.Anchor
		obj["fragment"] = v.Fragment
	}
	return obj
}
