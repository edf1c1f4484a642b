package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy_Delay(t *testing.T) {
	p := BackoffPolicy{MaxAttempts: 5, Initial: 10 * time.Millisecond, Max: 25 * time.Millisecond, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 25 * time.Millisecond},
		{10, 25 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffPolicy_Defaults(t *testing.T) {
	p := BackoffPolicy{Initial: time.Second}

	assert.Equal(t, 1, p.Attempts())
	assert.Equal(t, 2*time.Second, p.Delay(2), "multiplier defaults to 2")
	assert.Equal(t, 1024*time.Second, p.Delay(11), "no cap when Max is zero")

	huge := BackoffPolicy{Initial: time.Hour, Multiplier: 10}
	assert.Equal(t, time.Duration(1<<63-1), huge.Delay(100))
}
