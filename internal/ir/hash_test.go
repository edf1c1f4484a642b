package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashIsByteExact(t *testing.T) {
	a := ContentHash("Revenue grew last year.")
	b := ContentHash("Revenue grew last year.")
	c := ContentHash("Revenue grew last year. ")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
}

func TestEditHashDeterminism(t *testing.T) {
	edit := PatchEdit{Patches: []Patch{{Find: "grew", Replace: "grew 42%"}}}

	h1, err := EditHash(edit)
	require.NoError(t, err)
	h2, err := EditHash(edit)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestEditHashDistinguishesModes(t *testing.T) {
	top, err := EditHash(InsertEdit{Fragment: "x", Top: true})
	require.NoError(t, err)
	bottom, err := EditHash(InsertEdit{Fragment: "x"})
	require.NoError(t, err)
	whole, err := EditHash(WholeEdit{Content: "x"})
	require.NoError(t, err)

	assert.NotEqual(t, top, bottom)
	assert.NotEqual(t, top, whole)
}

func TestEditHashDomainSeparation(t *testing.T) {
	// Same bytes hashed under different domains never collide
	body := ContentHash(`{"content":"x","mode":"replace_whole"}`)
	edit, err := EditHash(WholeEdit{Content: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, body, edit)
}
