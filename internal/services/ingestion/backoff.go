package ingestion

import (
	"math/rand"
	"time"
)

// Backoff computes min(cap, base·2^attempt) with a ±jitter fraction.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
	// Rand returns a value in [0,1); nil uses math/rand.
	Rand func() float64
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt && d < b.Cap; i++ {
		d *= 2
	}
	if d > b.Cap {
		d = b.Cap
	}
	if b.Jitter <= 0 {
		return d
	}
	r := b.Rand
	if r == nil {
		r = rand.Float64
	}
	f := 1 + b.Jitter*(2*r()-1)
	return time.Duration(float64(d) * f)
}
