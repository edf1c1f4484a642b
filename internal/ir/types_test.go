package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectionOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/blog/how-to-bake", "blog"},
		{"blog/how-to-bake", "blog"},
		{"https://example.com/guides/x?y=1", "guides"},
		{"https://example.com", ""},
		{"/pricing", "pricing"},
		{"/pricing?ref=x", "pricing"},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SectionOf(tt.in))
		})
	}
}

func TestOutputModeValid(t *testing.T) {
	for _, m := range ValidModes {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, OutputMode("replace_all").Valid())
	assert.False(t, OutputMode("").Valid())
}

func TestExclusionSetIsAdditive(t *testing.T) {
	ex := ExclusionSet{
		Global:   []string{"legacy"},
		Sections: map[string][]string{"blog": {"add-faq"}},
	}

	assert.True(t, ex.Excludes("legacy", ""))
	assert.True(t, ex.Excludes("legacy", "blog"))
	assert.True(t, ex.Excludes("add-faq", "blog"))
	assert.False(t, ex.Excludes("add-faq", "docs"))
	assert.False(t, ex.Excludes("add-faq", ""))
}

func TestEditModes(t *testing.T) {
	assert.Equal(t, ModeReplaceWhole, WholeEdit{}.Mode())
	assert.Equal(t, ModeReplacePatches, PatchEdit{}.Mode())
	assert.Equal(t, ModeInsertTop, InsertEdit{Top: true}.Mode())
	assert.Equal(t, ModeInsertBottom, InsertEdit{}.Mode())
	assert.Equal(t, ModeInsertAtPoint, AnchorEdit{}.Mode())
}
