// Package selector picks the working set of documents for a bulk run.
//
// Documents are first filtered by eligibility (their last_action must be an
// accepted predecessor of the action being run) and ordered oldest-first.
// An operator sees only a short display window of that list but may address
// the whole of it with a range:
//
//	1,3,5   1-based indices into the displayed window
//	51:50   50 documents starting at the 51st oldest eligible one
//	all     every eligible document
//	q       abort, select nothing
package selector

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/contentpipe/internal/ir"
)

// DefaultWindow is the number of eligible documents displayed for index
// selection.
const DefaultWindow = 10

// SelectionError reports input that cannot be applied to the eligible set.
// No run is created when it is returned.
type SelectionError struct {
	Input  string
	Reason string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q: %s", e.Input, e.Reason)
}

// Kind identifies the form of a parsed selection.
type Kind int

const (
	KindIndices Kind = iota + 1
	KindRange
	KindAll
	KindQuit
)

// Selection is parsed operator input.
type Selection struct {
	Kind    Kind
	Input   string
	Indices []int // KindIndices: 1-based, de-duplicated, input order
	Start   int   // KindRange: 1-based rank of the first document
	Count   int   // KindRange: number of documents
}

// Eligible returns the documents whose last action is in accepts, sorted
// oldest-first by LastActionAt with ties broken by ID. Empty accepts admits
// every document. The input slice is not modified.
func Eligible(docs []ir.Document, accepts []string) []ir.Document {
	out := make([]ir.Document, 0, len(docs))
	for _, d := range docs {
		if len(accepts) == 0 || slices.Contains(accepts, d.LastAction) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b ir.Document) int {
		if c := a.LastActionAt.Compare(b.LastActionAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Window returns the displayed page: the first window eligible documents.
// A non-positive window means DefaultWindow.
func Window(eligible []ir.Document, window int) []ir.Document {
	if window <= 0 {
		window = DefaultWindow
	}
	return eligible[:min(window, len(eligible))]
}

// Parse parses selection input. Whitespace around tokens is ignored and the
// keywords are case-insensitive.
func Parse(input string) (Selection, error) {
	trimmed := strings.TrimSpace(input)
	sel := Selection{Input: input}

	switch strings.ToLower(trimmed) {
	case "":
		return sel, &SelectionError{Input: input, Reason: "empty input"}
	case "q":
		sel.Kind = KindQuit
		return sel, nil
	case "all":
		sel.Kind = KindAll
		return sel, nil
	}

	if start, count, ok := strings.Cut(trimmed, ":"); ok {
		n, err := positive(start)
		if err != nil {
			return sel, &SelectionError{Input: input, Reason: "range start: " + err.Error()}
		}
		m, err := positive(count)
		if err != nil {
			return sel, &SelectionError{Input: input, Reason: "range count: " + err.Error()}
		}
		sel.Kind = KindRange
		sel.Start, sel.Count = n, m
		return sel, nil
	}

	sel.Kind = KindIndices
	seen := make(map[int]bool)
	for _, tok := range strings.Split(trimmed, ",") {
		i, err := positive(tok)
		if err != nil {
			return sel, &SelectionError{Input: input, Reason: "index: " + err.Error()}
		}
		if !seen[i] {
			seen[i] = true
			sel.Indices = append(sel.Indices, i)
		}
	}
	return sel, nil
}

func positive(tok string) (int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", tok)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

// Apply resolves the selection against the eligible list. Indices address
// the displayed window; ranges and all address the full list. A range that
// starts inside the list but runs past its end is truncated; one that
// starts past the end is an error.
func (s Selection) Apply(eligible []ir.Document, window int) ([]ir.Document, error) {
	switch s.Kind {
	case KindQuit:
		return []ir.Document{}, nil

	case KindAll:
		return slices.Clone(eligible), nil

	case KindRange:
		if s.Start > len(eligible) {
			return nil, &SelectionError{
				Input:  s.Input,
				Reason: fmt.Sprintf("start %d is past the %d eligible documents", s.Start, len(eligible)),
			}
		}
		start := s.Start - 1
		end := start + min(s.Count, len(eligible)-start)
		return slices.Clone(eligible[start:end]), nil

	case KindIndices:
		page := Window(eligible, window)
		out := make([]ir.Document, 0, len(s.Indices))
		for _, i := range s.Indices {
			if i > len(page) {
				return nil, &SelectionError{
					Input:  s.Input,
					Reason: fmt.Sprintf("index %d is outside the %d displayed documents", i, len(page)),
				}
			}
			out = append(out, page[i-1])
		}
		return out, nil
	}
	return nil, &SelectionError{Input: s.Input, Reason: "unparsed selection"}
}

// Select parses input and applies it to the eligible list.
func Select(input string, eligible []ir.Document, window int) ([]ir.Document, error) {
	sel, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return sel.Apply(eligible, window)
}
