package patch

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/contentpipe/internal/ir"
)

func TestApplyPatchesSingleExactMatch(t *testing.T) {
	body := "Revenue grew last year."
	res := ApplyPatches(body, []ir.Patch{{
		Find:    "grew last year",
		Replace: "grew 42% last year, per Acme Research (2024)",
	}})

	assert.Equal(t, "Revenue grew 42% last year, per Acme Research (2024).", res.Body)
	assert.Equal(t, 1, res.Applied)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Changed(body))
}

func TestApplyPatchesAmbiguousIsSkipped(t *testing.T) {
	body := "Revenue grew last year. Headcount grew too, and margins grew."
	res := ApplyPatches(body, []ir.Patch{{Find: "grew", Replace: "..."}})

	assert.Equal(t, body, res.Body)
	assert.Equal(t, 0, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnAmbiguous, res.Warnings[0].Kind)
	assert.False(t, res.Changed(body))
}

func TestApplyPatchesNoMatchIsSkipped(t *testing.T) {
	body := "Revenue grew last year."
	res := ApplyPatches(body, []ir.Patch{{Find: "Grew", Replace: "shrank"}})

	assert.Equal(t, body, res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnNoMatch, res.Warnings[0].Kind)
	assert.Equal(t, 0, res.Warnings[0].Index)
}

func TestApplyPatchesOverlappingOccurrencesAreAmbiguous(t *testing.T) {
	body := "aaa"
	res := ApplyPatches(body, []ir.Patch{{Find: "aa", Replace: "b"}})

	assert.Equal(t, body, res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnAmbiguous, res.Warnings[0].Kind)
}

func TestApplyPatchesEmptyFind(t *testing.T) {
	body := "x"
	res := ApplyPatches(body, []ir.Patch{{Find: "", Replace: "y"}})

	assert.Equal(t, body, res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnEmptyFind, res.Warnings[0].Kind)
}

func TestApplyPatchesEmptyListIsNoop(t *testing.T) {
	bodies := []string{"", "Revenue grew last year.", "line\n\nline\n"}
	for _, body := range bodies {
		res := ApplyPatches(body, nil)
		assert.Equal(t, body, res.Body)
		assert.Zero(t, res.Applied)
		assert.Empty(t, res.Warnings)

		res = Apply(body, ir.PatchEdit{Patches: []ir.Patch{}})
		assert.Equal(t, body, res.Body)
	}
}

func TestApplyPatchesAreSequential(t *testing.T) {
	body := "The cat sat."
	res := ApplyPatches(body, []ir.Patch{
		{Find: "cat", Replace: "dog"},
		{Find: "dog sat", Replace: "dog stood"}, // targets text introduced by patch 0
		{Find: "cat", Replace: "bird"},          // no longer present
	})

	assert.Equal(t, "The dog stood.", res.Body)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 2, res.Warnings[0].Index)
	assert.Equal(t, WarnNoMatch, res.Warnings[0].Kind)
}

func TestApplyPatchesLaterPatchCanBecomeAmbiguous(t *testing.T) {
	body := "alpha beta"
	res := ApplyPatches(body, []ir.Patch{
		{Find: "alpha", Replace: "beta"},
		{Find: "beta", Replace: "gamma"},
	})

	assert.Equal(t, "beta beta", res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnAmbiguous, res.Warnings[0].Kind)
}

// Non-overlapping, uniquely matching patches preserve every untouched byte
// and shift the length by the sum of replacement deltas.
func TestApplyPatchesPreservesUnmatchedRegions(t *testing.T) {
	segments := []string{"Intro text. ", " middle ", " and the end."}
	finds := []string{"FIRST", "SECOND"}
	replaces := []string{"one", "the second replacement"}
	body := segments[0] + finds[0] + segments[1] + finds[1] + segments[2]

	patches := []ir.Patch{
		{Find: finds[0], Replace: replaces[0]},
		{Find: finds[1], Replace: replaces[1]},
	}
	res := ApplyPatches(body, patches)

	expected := segments[0] + replaces[0] + segments[1] + replaces[1] + segments[2]
	assert.Equal(t, expected, res.Body)

	delta := 0
	for _, p := range patches {
		delta += len(p.Replace) - len(p.Find)
	}
	assert.Equal(t, len(body)+delta, len(res.Body))
	assert.True(t, strings.HasPrefix(res.Body, segments[0]))
	assert.True(t, strings.HasSuffix(res.Body, segments[2]))
}

func TestApplyWholeReplaces(t *testing.T) {
	res := Apply("old", ir.WholeEdit{Content: "new body"})
	assert.Equal(t, "new body", res.Body)
	assert.Equal(t, 1, res.Applied)
}

func TestApplyInsertTopAndBottom(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		edit     ir.InsertEdit
		expected string
	}{
		{"top", "Body.\n", ir.InsertEdit{Fragment: "Summary.", Top: true}, "Summary.\n\nBody.\n"},
		{"top collapses newlines", "\n\nBody.", ir.InsertEdit{Fragment: "Summary.\n\n", Top: true}, "Summary.\n\nBody."},
		{"top into empty body", "", ir.InsertEdit{Fragment: "Summary.", Top: true}, "Summary.\n"},
		{"bottom", "Body.", ir.InsertEdit{Fragment: "FAQ."}, "Body.\n\nFAQ.\n"},
		{"bottom collapses newlines", "Body.\n\n\n", ir.InsertEdit{Fragment: "\nFAQ.\n"}, "Body.\n\nFAQ.\n"},
		{"bottom into empty body", "", ir.InsertEdit{Fragment: "FAQ."}, "FAQ.\n"},
		{"empty fragment is a no-op", "Body.", ir.InsertEdit{Fragment: "\n"}, "Body."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(tt.body, tt.edit)
			assert.Equal(t, tt.expected, res.Body)
		})
	}
}

func TestApplyAnchorInsertsAfterAnchor(t *testing.T) {
	body := "## Pricing\nPlans start at $10.\n## Support\n"
	res := Apply(body, ir.AnchorEdit{Anchor: "Plans start at $10.", Fragment: "\nAnnual billing saves 20%."})

	assert.Equal(t, "## Pricing\nPlans start at $10.\nAnnual billing saves 20%.\n## Support\n", res.Body)
	assert.Equal(t, 1, res.Applied)
}

func TestApplyAnchorFollowsMatchRules(t *testing.T) {
	body := "## A\n## A\n"
	res := Apply(body, ir.AnchorEdit{Anchor: "## A", Fragment: " extra"})
	assert.Equal(t, body, res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnAmbiguous, res.Warnings[0].Kind)

	res = Apply(body, ir.AnchorEdit{Anchor: "## B", Fragment: " extra"})
	assert.Equal(t, body, res.Body)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnNoMatch, res.Warnings[0].Kind)
}

func TestWarningStrings(t *testing.T) {
	res := ApplyPatches("a a", []ir.Patch{{Find: "a", Replace: "b"}})
	assert.Equal(t, []string{`patch 0 skipped (ambiguous): "a"`}, res.WarningStrings())

	assert.Nil(t, ApplyPatches("a", nil).WarningStrings())
}

func TestWarningTruncatesOnRuneBoundary(t *testing.T) {
	find := strings.Repeat("a", 59) + strings.Repeat("é", 10)
	got := Warning{Index: 0, Kind: WarnNoMatch, Find: find}.String()
	assert.True(t, utf8.ValidString(got))
	assert.NotContains(t, got, `\x`)
	assert.Equal(t, `patch 0 skipped (no_match): "`+strings.Repeat("a", 59)+`..."`, got)

	short := "résumé"
	assert.Equal(t, short, truncate(short, 60))
	assert.Equal(t, "r...", truncate(short, 2))
	assert.Equal(t, "ré...", truncate(short, 3))
}

func TestApplyPatchesGoldenArticle(t *testing.T) {
	body := "# Remote work in 2024\n\n" +
		"Remote work is popular. Many teams adopted it.\n\n" +
		"## Productivity\n\n" +
		"Studies show productivity went up.\n"

	res := ApplyPatches(body, []ir.Patch{
		{Find: "Remote work is popular.", Replace: "Remote work is popular: 28% of US workdays were remote in 2024."},
		{Find: "Studies show productivity went up.", Replace: "A Stanford study found a 13% productivity gain."},
		{Find: "teams", Replace: "companies"},
	})
	require.Empty(t, res.Warnings)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "article_citations", []byte(res.Body))
}
