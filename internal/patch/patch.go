// Package patch applies parsed edits to a document body.
//
// Apply is a pure function: it never touches storage and never fails. Patches
// that cannot be applied safely are skipped and reported as warnings; the
// caller decides whether a skipped patch escalates to an action failure.
//
// Matching rules for find/replace patches:
//   - Find is matched verbatim (case and whitespace sensitive)
//   - Find must occur exactly once in the body as it stands when the patch is
//     applied; overlapping occurrences count
//   - Patches apply in order, each against the progressively updated body
//   - Bytes outside the matched span are preserved exactly
package patch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/contentpipe/internal/ir"
)

// WarningKind classifies a skipped patch.
type WarningKind string

const (
	// WarnNoMatch means the find text does not occur in the body.
	WarnNoMatch WarningKind = "no_match"

	// WarnAmbiguous means the find text occurs more than once.
	WarnAmbiguous WarningKind = "ambiguous"

	// WarnEmptyFind means the patch has an empty find text.
	WarnEmptyFind WarningKind = "empty_find"
)

// Warning describes a patch that was skipped.
type Warning struct {
	Index int         `json:"index"`
	Kind  WarningKind `json:"kind"`
	Find  string      `json:"find"`
}

// String renders the warning for run audit records.
func (w Warning) String() string {
	return fmt.Sprintf("patch %d skipped (%s): %q", w.Index, w.Kind, truncate(w.Find, 60))
}

// Result is the outcome of applying an edit.
type Result struct {
	Body     string
	Applied  int
	Skipped  int
	Warnings []Warning
}

// Changed reports whether the result differs from original.
func (r Result) Changed(original string) bool {
	return r.Body != original
}

// WarningStrings returns the warnings rendered for persistence.
func (r Result) WarningStrings() []string {
	if len(r.Warnings) == 0 {
		return nil
	}
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.String()
	}
	return out
}

// Apply merges edit into body according to the edit's output mode.
func Apply(body string, edit ir.Edit) Result {
	switch e := edit.(type) {
	case ir.WholeEdit:
		return Result{Body: e.Content, Applied: 1}
	case ir.PatchEdit:
		return ApplyPatches(body, e.Patches)
	case ir.InsertEdit:
		if e.Top {
			return Result{Body: InsertTop(body, e.Fragment), Applied: 1}
		}
		return Result{Body: InsertBottom(body, e.Fragment), Applied: 1}
	case ir.AnchorEdit:
		return ApplyPatches(body, []ir.Patch{{Find: e.Anchor, Replace: e.Anchor + e.Fragment}})
	default:
		return Result{Body: body}
	}
}

// ApplyPatches applies find/replace patches in order. An empty list is a no-op.
func ApplyPatches(body string, patches []ir.Patch) Result {
	res := Result{Body: body}
	for i, p := range patches {
		if p.Find == "" {
			res.skip(i, WarnEmptyFind, p.Find)
			continue
		}
		idx, n := locate(res.Body, p.Find)
		switch n {
		case 0:
			res.skip(i, WarnNoMatch, p.Find)
		case 1:
			res.Body = res.Body[:idx] + p.Replace + res.Body[idx+len(p.Find):]
			res.Applied++
		default:
			res.skip(i, WarnAmbiguous, p.Find)
		}
	}
	return res
}

func (r *Result) skip(index int, kind WarningKind, find string) {
	r.Skipped++
	r.Warnings = append(r.Warnings, Warning{Index: index, Kind: kind, Find: find})
}

// locate returns the offset of the first occurrence of find and whether it
// occurs zero, one, or more (2) times. A second occurrence starting inside
// the first one still counts.
func locate(body, find string) (int, int) {
	first := strings.Index(body, find)
	if first < 0 {
		return -1, 0
	}
	if strings.Contains(body[first+1:], find) {
		return first, 2
	}
	return first, 1
}

// InsertTop prepends fragment, separated from the body by one blank line.
// Leading blank lines of the body and trailing newlines of the fragment are
// collapsed into that separator.
func InsertTop(body, fragment string) string {
	frag := strings.Trim(fragment, "\n")
	if frag == "" {
		return body
	}
	rest := strings.TrimLeft(body, "\n")
	if rest == "" {
		return frag + "\n"
	}
	return frag + "\n\n" + rest
}

// InsertBottom appends fragment after one blank line and ends with a newline.
func InsertBottom(body, fragment string) string {
	frag := strings.Trim(fragment, "\n")
	if frag == "" {
		return body
	}
	head := strings.TrimRight(body, "\n")
	if head == "" {
		return frag + "\n"
	}
	return head + "\n\n" + frag + "\n"
}

// truncate shortens s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
