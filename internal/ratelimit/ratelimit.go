// Package ratelimit enforces the global minimum spacing between upstream
// calls via a token bucket, escalating on HTTP 429.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with 429-triggered
// escalation: each Penalize call halves the bucket rate, up to a floor,
// until Reset restores the configured default.
type Limiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	defaultRate rate.Limit
}

// New builds a limiter with one token every delay, refilling at that
// rate (REQUEST_DELAY_SECONDS).
func New(delay time.Duration) *Limiter {
	r := rate.Every(delay)
	return &Limiter{
		limiter:     rate.NewLimiter(r, 1),
		defaultRate: r,
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()
	return limiter.Wait(ctx)
}

// Penalize halves the current rate (floor one token per minute) in
// response to an HTTP 429 from upstream.
func (l *Limiter) Penalize() {
	l.mu.Lock()
	defer l.mu.Unlock()

	floor := rate.Every(time.Minute)
	newRate := l.limiter.Limit() / 2
	if newRate < floor {
		newRate = floor
	}
	l.limiter.SetLimit(newRate)
}

// Reset restores the configured default rate.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter.SetLimit(l.defaultRate)
}
