package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelay spaces consecutive requests at least FixedDelay apart.
type FixedDelay struct {
	mu   sync.Mutex
	next time.Time
	cfg  Config
}

// NewFixedDelay creates a fixed delay limiter.
func NewFixedDelay(cfg Config) *FixedDelay {
	return &FixedDelay{cfg: WithDefaults(cfg)}
}

// Wait claims the next slot and sleeps until it starts.
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	now := time.Now()
	start := fd.next
	if start.Before(now) {
		start = now
	}
	fd.next = start.Add(fd.cfg.FixedDelay)
	fd.mu.Unlock()

	return sleep(ctx, start.Sub(now))
}

// Allow claims the slot only when no wait is needed.
func (fd *FixedDelay) Allow() bool {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	now := time.Now()
	if now.Before(fd.next) {
		return false
	}
	fd.next = now.Add(fd.cfg.FixedDelay)
	return true
}

// Reserve returns the remaining wait for the next slot.
func (fd *FixedDelay) Reserve() time.Duration {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if wait := time.Until(fd.next); wait > 0 {
		return wait
	}
	return 0
}

// RetryAfter returns the backoff before retry attempt.
func (fd *FixedDelay) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fd.cfg)
}

// Reset forgets the last request.
func (fd *FixedDelay) Reset() {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.next = time.Time{}
}
