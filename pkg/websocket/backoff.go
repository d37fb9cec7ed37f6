package websocket

import (
	"math/rand"
	"time"
)

// DefaultBackoff starts at one second and grows by half up to thirty seconds.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 1.5,
	}
}

func (b Backoff) floor() time.Duration {
	if b.Min <= 0 {
		return time.Second
	}
	return b.Min
}

func (b Backoff) ceiling() time.Duration {
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	if max < b.floor() {
		return b.floor()
	}
	return max
}

func (b Backoff) factor() float64 {
	if b.Factor <= 1 {
		return 1.5
	}
	return b.Factor
}

// Grow returns the delay that follows d, clamped to the ceiling.
func (b Backoff) Grow(d time.Duration) time.Duration {
	if d < b.floor() {
		d = b.floor()
	}
	next := time.Duration(float64(d) * b.factor())
	if next > b.ceiling() || next < d {
		return b.ceiling()
	}
	return next
}

// Next returns the delay before the given reconnect attempt (1-based):
// min(ceiling, floor * factor^(attempt-1)).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	wait := b.floor()
	for i := 1; i < attempt; i++ {
		wait = b.Grow(wait)
		if wait == b.ceiling() {
			break
		}
	}
	return wait
}

// Wait applies jitter to d. Without jitter it returns d unchanged.
func (b Backoff) Wait(d time.Duration) time.Duration {
	if b.Jitter <= 0 || d <= 0 {
		return d
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(d) * jitter
	return d - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}
