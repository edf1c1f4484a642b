package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_UTC(t *testing.T) {
	before := time.Now()
	now := SystemClock{}.Now()

	assert.Equal(t, time.UTC, now.Location())
	assert.False(t, now.Before(before.Add(-time.Second)))
}

func TestClockFunc(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := ClockFunc(func() time.Time { return fixed })

	assert.Equal(t, fixed, c.Now())
	assert.Equal(t, fixed, c.Now())
}
