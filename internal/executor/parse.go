package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/contentpipe/internal/ir"
)

// wireResponse is the union of every mode's response schema. Pointer fields
// distinguish "absent" from "empty".
type wireResponse struct {
	Content      *string      `json:"content"`
	Replacements *[]wirePatch `json:"replacements"`
	Fragment     *string      `json:"fragment"`
	Anchor       *string      `json:"anchor"`
}

type wirePatch struct {
	Find    *string `json:"find"`
	Replace *string `json:"replace"`
}

// ParseResponse decodes a generative response into the edit mandated by
// mode. A single surrounding markdown code fence is tolerated; anything
// else that is not the expected JSON object is an error.
//
//	replace_whole           {"content": "..."}
//	replace_patches         {"replacements": [{"find": "...", "replace": "..."}]}
//	insert_top/bottom       {"fragment": "..."}
//	insert_at_point         {"anchor": "...", "fragment": "..."}
func ParseResponse(mode ir.OutputMode, text string) (ir.Edit, error) {
	raw := stripFence(text)
	if raw == "" {
		return nil, errors.New("empty response")
	}

	var resp wireResponse
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}

	switch mode {
	case ir.ModeReplaceWhole:
		if resp.Content == nil {
			return nil, errors.New(`missing "content"`)
		}
		return ir.WholeEdit{Content: *resp.Content}, nil

	case ir.ModeReplacePatches:
		if resp.Replacements == nil {
			return nil, errors.New(`missing "replacements"`)
		}
		patches := make([]ir.Patch, len(*resp.Replacements))
		for i, p := range *resp.Replacements {
			if p.Find == nil || p.Replace == nil {
				return nil, fmt.Errorf(`replacements[%d]: "find" and "replace" are required`, i)
			}
			patches[i] = ir.Patch{Find: *p.Find, Replace: *p.Replace}
		}
		return ir.PatchEdit{Patches: patches}, nil

	case ir.ModeInsertTop, ir.ModeInsertBottom:
		if resp.Fragment == nil {
			return nil, errors.New(`missing "fragment"`)
		}
		return ir.InsertEdit{Fragment: *resp.Fragment, Top: mode == ir.ModeInsertTop}, nil

	case ir.ModeInsertAtPoint:
		if resp.Fragment == nil || resp.Anchor == nil {
			return nil, errors.New(`"anchor" and "fragment" are required`)
		}
		return ir.AnchorEdit{Anchor: *resp.Anchor, Fragment: *resp.Fragment}, nil

	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	// drop the info string ("json") on the opening line
	if i := strings.IndexByte(inner, '\n'); i >= 0 {
		if info := strings.TrimSpace(inner[:i]); info == "" || isInfoString(info) {
			inner = inner[i+1:]
		}
	}
	return strings.TrimSpace(inner)
}

func isInfoString(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// editText returns the generated text carried by an edit, used as the output
// of actions that run without a document.
func editText(e ir.Edit) string {
	switch v := e.(type) {
	case ir.WholeEdit:
		return v.Content
	case ir.InsertEdit:
		return v.Fragment
	case ir.AnchorEdit:
		return v.Fragment
	case ir.PatchEdit:
		parts := make([]string, len(v.Patches))
		for i, p := range v.Patches {
			parts[i] = p.Replace
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
