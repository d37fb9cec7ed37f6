package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffNext(t *testing.T) {
	b := DefaultBackoff()
	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 1500 * time.Millisecond},
		{3, 2250 * time.Millisecond},
		{4, 3375 * time.Millisecond},
		{9, 25628906250 * time.Nanosecond},
		{10, 30 * time.Second},
		{50, 30 * time.Second},
	}

	for _, tc := range testCases {
		assert.Equalf(t, tc.expected, b.Next(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestBackoffGrowMatchesNext(t *testing.T) {
	b := DefaultBackoff()
	delay := b.Min
	for attempt := 1; attempt <= 20; attempt++ {
		assert.Equalf(t, b.Next(attempt), delay, "attempt %d", attempt)
		next := b.Grow(delay)
		assert.GreaterOrEqual(t, next, delay)
		assert.LessOrEqual(t, next, b.Max)
		delay = next
	}
}

func TestBackoffZeroValueFallsBack(t *testing.T) {
	var b Backoff
	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, 1500*time.Millisecond, b.Grow(time.Second))
	assert.Equal(t, 30*time.Second, b.Grow(29*time.Second))
}

func TestBackoffWaitJitter(t *testing.T) {
	b := DefaultBackoff()
	assert.Equal(t, 2*time.Second, b.Wait(2*time.Second))

	b.Jitter = 0.2
	for i := 0; i < 100; i++ {
		wait := b.Wait(10 * time.Second)
		assert.GreaterOrEqual(t, wait, 8*time.Second)
		assert.LessOrEqual(t, wait, 12*time.Second)
	}
}
