package harness

import (
	"fmt"
	"math"
	"strings"
)

// EvaluateAssertions checks every assertion against the final state and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRunState:
			err = assertRunState(result, a)
		case AssertDocument:
			err = assertDocument(result, a)
		case AssertSnapshotCount:
			err = assertSnapshotCount(result, a)
		case AssertProviderCalls:
			err = assertProviderCalls(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// AssertionError reports an expected and an actual value.
type AssertionError struct {
	Type     string
	Subject  string
	Field    string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s %s: %s expected %v, got %v", e.Type, e.Subject, e.Field, e.Expected, e.Actual)
}

func assertRunState(result *Result, a Assertion) error {
	run, ok := result.Run(a.Run)
	if !ok {
		return fmt.Errorf("run_state: run %s was not created", a.Run)
	}
	mismatch := func(field string, want, got any) error {
		return &AssertionError{Type: a.Type, Subject: a.Run, Field: field, Expected: want, Actual: got}
	}

	if a.Status != "" && string(run.Status) != a.Status {
		return mismatch("status", a.Status, run.Status)
	}
	if a.CurrentIndex != nil && run.CurrentIndex != *a.CurrentIndex {
		return mismatch("current_index", *a.CurrentIndex, run.CurrentIndex)
	}
	if a.TotalCost != nil && math.Abs(run.TotalCost-*a.TotalCost) > 1e-9 {
		return mismatch("total_cost", *a.TotalCost, run.TotalCost)
	}
	if a.TotalTokens != nil && run.TotalTokens != *a.TotalTokens {
		return mismatch("total_tokens", *a.TotalTokens, run.TotalTokens)
	}
	if a.FailedAction != "" && run.FailedAction != a.FailedAction {
		return mismatch("failed_action", a.FailedAction, run.FailedAction)
	}
	if a.Results != nil && len(run.Results) != *a.Results {
		return mismatch("results", *a.Results, len(run.Results))
	}
	return nil
}

func assertDocument(result *Result, a Assertion) error {
	doc, ok := result.Document(a.Document)
	if !ok {
		return fmt.Errorf("document: %s does not exist", a.Document)
	}
	mismatch := func(field string, want, got any) error {
		return &AssertionError{Type: a.Type, Subject: a.Document, Field: field, Expected: want, Actual: got}
	}

	if a.LastAction != "" && doc.LastAction != a.LastAction {
		return mismatch("last_action", a.LastAction, doc.LastAction)
	}
	if a.Body != nil && doc.Body != *a.Body {
		return mismatch("body", fmt.Sprintf("%q", *a.Body), fmt.Sprintf("%q", doc.Body))
	}
	if a.BodyContains != "" && !strings.Contains(doc.Body, a.BodyContains) {
		return mismatch("body", fmt.Sprintf("to contain %q", a.BodyContains), fmt.Sprintf("%q", doc.Body))
	}
	if a.AppliedActions != nil && !equalStrings(doc.AppliedActions, a.AppliedActions) {
		return mismatch("applied_actions", a.AppliedActions, doc.AppliedActions)
	}
	return nil
}

func assertSnapshotCount(result *Result, a Assertion) error {
	doc, ok := result.Document(a.Document)
	if !ok {
		return fmt.Errorf("snapshot_count: %s does not exist", a.Document)
	}
	if doc.Snapshots != *a.Count {
		return &AssertionError{Type: a.Type, Subject: a.Document, Field: "count", Expected: *a.Count, Actual: doc.Snapshots}
	}
	return nil
}

func assertProviderCalls(result *Result, a Assertion) error {
	if !equalStrings(result.Calls, a.Actions) {
		return &AssertionError{Type: a.Type, Subject: "provider", Field: "calls", Expected: a.Actions, Actual: result.Calls}
	}
	return nil
}

// equalStrings treats nil and empty as equal.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
