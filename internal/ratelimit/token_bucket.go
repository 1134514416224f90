package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket allows bursts up to Burst and refills at RequestsPerSec.
type TokenBucket struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	config  Config
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(cfg Config) *TokenBucket {
	cfg = WithDefaults(cfg)
	return &TokenBucket{
		limiter: newRateLimiter(cfg),
		config:  cfg,
	}
}

func newRateLimiter(cfg Config) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst)
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.current().Wait(ctx)
}

// Allow takes a token if one is available now.
func (tb *TokenBucket) Allow() bool {
	return tb.current().Allow()
}

// Reserve returns how long until a token is available, without taking it.
func (tb *TokenBucket) Reserve() time.Duration {
	tokens := tb.current().Tokens()
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) / tb.config.RequestsPerSec * float64(time.Second))
}

// RetryAfter returns the backoff before retry attempt.
func (tb *TokenBucket) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, tb.config)
}

// Reset refills the bucket.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = newRateLimiter(tb.config)
}

func (tb *TokenBucket) current() *rate.Limiter {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter
}
