package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalStringsEmpty(t *testing.T) {
	for _, in := range [][]string{nil, {}} {
		got, err := marshalStrings(in)
		require.NoError(t, err)
		assert.Equal(t, "[]", got)
	}

	out, err := unmarshalStrings("")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMarshalStringsPreservesOrder(t *testing.T) {
	in := []string{"z", "a", "m & <b>"}
	data, err := marshalStrings(in)
	require.NoError(t, err)

	out, err := unmarshalStrings(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalStringsRejectsGarbage(t *testing.T) {
	_, err := unmarshalStrings("{not json")
	assert.Error(t, err)
}

func TestNanosZeroTime(t *testing.T) {
	assert.Equal(t, int64(0), toNanos(time.Time{}))
	assert.True(t, fromNanos(0).IsZero())

	local := time.Date(2024, 3, 1, 13, 0, 0, 5, time.FixedZone("CET", 3600))
	back := fromNanos(toNanos(local))
	assert.True(t, back.Equal(local))
	assert.Equal(t, time.UTC, back.Location())
}

func TestNullableNanos(t *testing.T) {
	assert.False(t, nullableNanos(nil).Valid)
	assert.Nil(t, timePtr(sql.NullInt64{}))

	now := testEpoch
	n := nullableNanos(&now)
	require.True(t, n.Valid)
	got := timePtr(n)
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))
}
