package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a set of token buckets keyed by an arbitrary string (a symbol
// for dispatch).
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a limiter refilling perMinute tokens per minute with the given burst.
func New(perMinute float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return lim
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = lim
	return lim
}

// Allow consumes one token for key at time.Now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// AllowAt consumes one token for key as of now; callers with their own clock use it.
func (l *Limiter) AllowAt(key string, now time.Time) bool {
	return l.get(key).AllowN(now, 1)
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

// Reset drops every bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters = make(map[string]*rate.Limiter)
}
