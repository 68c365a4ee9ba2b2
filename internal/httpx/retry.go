package httpx

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy implements exponential backoff with optional jitter.
// It is safe for concurrent use.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Factor     float64
	Jitter     bool
}

// NewRetryPolicy creates a new retry policy. MaxRetries is taken as given
// since zero means no retries.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 1 * time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Factor == 0 {
		cfg.Factor = 2.0
	}

	return &RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		Factor:     cfg.Factor,
		Jitter:     cfg.Jitter,
	}
}

// Delay calculates the delay for a given retry attempt (0-indexed).
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	jitter := 1.0
	if p.Jitter {
		jitter = 0.5 + rand.Float64() // 0.5 to 1.5
	}
	return p.DelayWithJitter(attempt, jitter)
}

// DelayWithJitter calculates the delay using a fixed jitter factor
// (expected to be 0.5 to 1.5).
func (p *RetryPolicy) DelayWithJitter(attempt int, jitterFactor float64) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay * jitterFactor)
}

// DelayFor returns the wait before the next attempt after err. A 429 with a
// Retry-After header wins over the computed backoff, capped at MaxDelay.
func (p *RetryPolicy) DelayFor(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return min(rl.RetryAfter, p.MaxDelay)
	}
	return p.Delay(attempt)
}

// ShouldRetry returns true if we haven't exhausted retry attempts.
func (p *RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}
