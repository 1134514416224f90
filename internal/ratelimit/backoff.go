package ratelimit

import (
	"context"
	"errors"
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
	base = math.Min(base, float64(cfg.MaxBackoff))

	backoff := base + base*0.25*(2*rand.Float64()-1)
	backoff = math.Max(0, math.Min(backoff, float64(cfg.MaxBackoff)))
	return time.Duration(backoff)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or
// maxRetries retries are spent. Every attempt waits on the limiter first and
// failed attempts sleep for l.RetryAfter(attempt). The last error is returned
// unwrapped from Permanent.
func Retry(ctx context.Context, l Limiter, maxRetries int, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, l.RetryAfter(attempt)); werr != nil {
				return werr
			}
		}
		if werr := l.Wait(ctx); werr != nil {
			return werr
		}

		err = fn(attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}
