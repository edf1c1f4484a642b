// Package accounting computes per-action cost and folds run results into
// aggregate totals.
//
// Token counts come from the provider's usage report when one is available.
// Otherwise they are estimated from content length and flagged as such, so
// downstream reconciliation never mixes estimates with actuals.
package accounting

import "github.com/roach88/contentpipe/internal/ir"

// BytesPerToken is the length-based fallback ratio.
const BytesPerToken = 4

// Usage is a token count for one provider call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Estimated    bool
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// EstimateTokens approximates the token count of s (one token per four
// bytes, rounded up). The empty string is zero tokens.
func EstimateTokens(s string) int64 {
	return (int64(len(s)) + BytesPerToken - 1) / BytesPerToken
}

// Estimate builds an estimated Usage from prompt and response text.
func Estimate(prompt, response string) Usage {
	return Usage{
		InputTokens:  EstimateTokens(prompt),
		OutputTokens: EstimateTokens(response),
		Estimated:    true,
	}
}

// Cost applies a pricing model to a usage:
// (input*input_rate + output*output_rate)/1e6 + fixed_fee.
func Cost(p ir.Pricing, u Usage) float64 {
	variable := float64(u.InputTokens)*p.InputPerMillion + float64(u.OutputTokens)*p.OutputPerMillion
	return variable/1e6 + p.FixedFee
}

// Summary is the fold of a run's per-action results.
type Summary struct {
	TotalCost        float64 `json:"total_cost"`
	TotalTokens      int64   `json:"total_tokens"`
	ActualTokens     int64   `json:"actual_tokens"`
	EstimatedTokens  int64   `json:"estimated_tokens"`
	ActualCost       float64 `json:"actual_cost"`
	EstimatedCost    float64 `json:"estimated_cost"`
	Succeeded        int     `json:"succeeded"`
	Failed           int     `json:"failed"`
	EstimatedActions int     `json:"estimated_actions"`
}

// Summarize folds results. It is pure and order-independent.
func Summarize(results []ir.ActionResult) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r)
	}
	return s
}

// Add folds one result into the summary.
func (s *Summary) Add(r ir.ActionResult) {
	tokens := r.Tokens()
	s.TotalCost += r.Cost
	s.TotalTokens += tokens
	if r.Estimated {
		s.EstimatedTokens += tokens
		s.EstimatedCost += r.Cost
		s.EstimatedActions++
	} else {
		s.ActualTokens += tokens
		s.ActualCost += r.Cost
	}
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
}
