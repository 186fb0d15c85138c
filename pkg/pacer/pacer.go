package pacer

import (
	"context"
	"math/rand"
	"time"
)

// Pacer inserts a delay between consecutive operations. Implementations must
// return early with the context error if the context is cancelled mid-wait.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Random sleeps for a uniformly distributed duration in [Min, Max] on every
// Wait. Randomizing the gap avoids a fixed, fingerprintable request cadence.
type Random struct {
	min time.Duration
	max time.Duration
}

// NewRandom creates a Random pacer. Min and max are swapped if reversed;
// non-positive values collapse to a no-op wait.
func NewRandom(min, max time.Duration) *Random {
	if min < 0 {
		min = 0
	}
	if max < min {
		min, max = max, min
	}
	return &Random{min: min, max: max}
}

// Wait blocks for the randomized delay or until the context is cancelled.
func (p *Random) Wait(ctx context.Context) error {
	delay := p.min
	if span := p.max - p.min; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None never waits. Tests use it to drive batch loops without timing
// dependencies.
type None struct{}

func (None) Wait(ctx context.Context) error {
	return ctx.Err()
}
