package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/contentpipe/internal/ir"
)

// Trace returns the deterministic part of a result as a canonical JSON
// object: step events, final runs (without timestamps or error texts),
// final documents and provider calls.
func (r *Result) Trace(scenarioName string) map[string]any {
	steps := make([]any, len(r.Steps))
	for i, s := range r.Steps {
		m := map[string]any{"op": s.Op}
		if s.RunID != "" {
			m["run"] = s.RunID
		}
		if s.Status != "" {
			m["status"] = string(s.Status)
			m["index"] = s.CurrentIndex
		}
		if s.Error != "" {
			m["error"] = s.Error
		}
		steps[i] = m
	}

	runs := make([]any, len(r.Runs))
	for i, run := range r.Runs {
		runs[i] = runTrace(run)
	}

	docs := make([]any, len(r.Documents))
	for i, d := range r.Documents {
		docs[i] = map[string]any{
			"id":              d.ID,
			"body":            d.Body,
			"last_action":     d.LastAction,
			"applied_actions": d.AppliedActions,
			"snapshots":       d.Snapshots,
		}
	}

	return map[string]any{
		"scenario":  scenarioName,
		"steps":     steps,
		"runs":      runs,
		"documents": docs,
		"calls":     r.Calls,
	}
}

func runTrace(run *ir.Run) map[string]any {
	results := make([]any, len(run.Results))
	for i, res := range run.Results {
		m := map[string]any{
			"action":        res.Action,
			"success":       res.Success,
			"changed":       res.Changed,
			"cost":          res.Cost,
			"input_tokens":  res.InputTokens,
			"output_tokens": res.OutputTokens,
			"estimated":     res.Estimated,
		}
		if len(res.Warnings) > 0 {
			m["warnings"] = res.Warnings
		}
		results[i] = m
	}

	m := map[string]any{
		"id":               run.ID,
		"status":           string(run.Status),
		"actions":          run.Actions,
		"current_index":    run.CurrentIndex,
		"total_cost":       run.TotalCost,
		"total_tokens":     run.TotalTokens,
		"cancel_requested": run.CancelRequested,
		"attempts":         run.Attempts,
		"results":          results,
	}
	if run.FailedAction != "" {
		m["failed_action"] = run.FailedAction
	}
	return m
}

// RunWithGolden executes a scenario, fails the test on any step or
// assertion failure, and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := ir.MarshalCanonical(result.Trace(scenarioName))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
