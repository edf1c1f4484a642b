package accounting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/contentpipe/internal/ir"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.in), "input %q", tt.in)
	}
}

func TestEstimateMarksUsage(t *testing.T) {
	u := Estimate("abcdefgh", "abc")
	assert.Equal(t, Usage{InputTokens: 2, OutputTokens: 1, Estimated: true}, u)
	assert.Equal(t, int64(3), u.Total())
}

func TestCost(t *testing.T) {
	p := ir.Pricing{InputPerMillion: 3.0, OutputPerMillion: 15.0, FixedFee: 0.01}

	assert.InDelta(t, 0.01, Cost(p, Usage{}), 1e-12)
	assert.InDelta(t, 3.0+15.0+0.01, Cost(p, Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}), 1e-9)
	assert.InDelta(t, (1000*3.0+500*15.0)/1e6+0.01, Cost(p, Usage{InputTokens: 1000, OutputTokens: 500}), 1e-12)

	assert.Zero(t, Cost(ir.Pricing{}, Usage{InputTokens: 1234, OutputTokens: 99}))
}

func TestSummarizeSeparatesEstimatedFromActual(t *testing.T) {
	results := []ir.ActionResult{
		{Action: "a", Success: true, Cost: 0.5, InputTokens: 100, OutputTokens: 50},
		{Action: "b", Success: true, Cost: 0.25, InputTokens: 10, OutputTokens: 5, Estimated: true},
		{Action: "c", Success: false, Cost: 0.125, InputTokens: 7, OutputTokens: 1},
	}

	s := Summarize(results)

	assert.InDelta(t, 0.875, s.TotalCost, 1e-12)
	assert.Equal(t, int64(173), s.TotalTokens)
	assert.Equal(t, int64(158), s.ActualTokens)
	assert.Equal(t, int64(15), s.EstimatedTokens)
	assert.InDelta(t, 0.625, s.ActualCost, 1e-12)
	assert.InDelta(t, 0.25, s.EstimatedCost, 1e-12)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.EstimatedActions)
	assert.Equal(t, s.TotalTokens, s.ActualTokens+s.EstimatedTokens)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSummarizeOrderIndependent(t *testing.T) {
	a := ir.ActionResult{Success: true, Cost: 1, InputTokens: 1}
	b := ir.ActionResult{Success: false, Cost: 2, OutputTokens: 3, Estimated: true}
	assert.Equal(t, Summarize([]ir.ActionResult{a, b}), Summarize([]ir.ActionResult{b, a}))
}
