package ratelimit

import (
	"math"
	"math/rand"
	"time"
)

// CalculateBackoff computes exponential backoff with +/-25% jitter.
func CalculateBackoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > cfg.MaxRetries {
		return cfg.MaxBackoff
	}

	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if base > float64(cfg.MaxBackoff) {
		base = float64(cfg.MaxBackoff)
	}

	backoff := base + base*0.25*(2*rand.Float64()-1)
	backoff = math.Max(0, math.Min(backoff, float64(cfg.MaxBackoff)))

	return time.Duration(backoff)
}
