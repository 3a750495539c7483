package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelayLimiter spaces consecutive dispatches by a fixed delay. The first
// dispatch is immediate.
type FixedDelayLimiter struct {
	delay       time.Duration
	lastRequest time.Time
	mu          sync.Mutex
	config      Config
}

// NewFixedDelayLimiter creates a new fixed delay limiter.
func NewFixedDelayLimiter(cfg Config) *FixedDelayLimiter {
	cfg = applyDefaults(cfg)

	return &FixedDelayLimiter{
		delay:  cfg.FixedDelay,
		config: cfg,
	}
}

// Wait claims the next dispatch slot and sleeps until it arrives. Concurrent
// callers queue up one delay apart.
func (fdl *FixedDelayLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fdl.mu.Lock()
	wait, now := fdl.reserve(time.Now())
	fdl.lastRequest = now.Add(wait)
	fdl.mu.Unlock()

	return Sleep(ctx, wait)
}

// Reserve returns time to wait.
func (fdl *FixedDelayLimiter) Reserve() time.Duration {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()

	wait, _ := fdl.reserve(time.Now())
	return wait
}

func (fdl *FixedDelayLimiter) reserve(now time.Time) (time.Duration, time.Time) {
	if fdl.lastRequest.IsZero() {
		return 0, now
	}

	elapsed := now.Sub(fdl.lastRequest)
	if elapsed >= fdl.delay {
		return 0, now
	}

	return fdl.delay - elapsed, now
}

// RetryAfter returns exponential backoff duration.
func (fdl *FixedDelayLimiter) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fdl.config)
}

func (fdl *FixedDelayLimiter) MaxRetries() int {
	return fdl.config.MaxRetries
}

// Reset resets the last request time.
func (fdl *FixedDelayLimiter) Reset() {
	fdl.mu.Lock()
	defer fdl.mu.Unlock()
	fdl.lastRequest = time.Time{}
}
