package ratelimit

import (
	"context"
	"time"
)

// Limiter paces outbound requests to a remote source.
type Limiter interface {
	// Wait blocks until the next request may be dispatched or ctx is done.
	Wait(ctx context.Context) error
	// Reserve reports how long Wait would block now without claiming a slot.
	Reserve() time.Duration
	// RetryAfter is the pause before retry number attempt (1-based).
	RetryAfter(attempt int) time.Duration
	MaxRetries() int
	// Reset forgets earlier dispatches so a new run starts unthrottled.
	Reset()
}

// Strategy defines the rate limiting strategy.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedDelay  Strategy = "fixed_delay"
)

// NewLimiter creates a rate limiter based on config.
func NewLimiter(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	switch cfg.Strategy {
	case StrategyTokenBucket:
		return NewTokenBucket(cfg)
	default:
		return NewFixedDelayLimiter(cfg)
	}
}

// Sleep waits for d unless ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
