package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow allows RequestsPerSec requests per one-second window.
type FixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	cfg         Config
}

// NewFixedWindow creates a fixed window limiter. Fractional rates round
// down with a minimum of one request per window.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = WithDefaults(cfg)
	limit := int(cfg.RequestsPerSec)
	if limit < 1 {
		limit = 1
	}
	return &FixedWindow{
		limit:       limit,
		window:      time.Second,
		windowStart: time.Now(),
		cfg:         cfg,
	}
}

// Wait blocks until the request fits in a window or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for !fw.Allow() {
		if err := sleep(ctx, fw.Reserve()+time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// Allow counts the request if the current window has room.
func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.roll()
	if fw.count < fw.limit {
		fw.count++
		return true
	}
	return false
}

// Reserve returns the time until the current window closes when it is full.
func (fw *FixedWindow) Reserve() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.roll()
	if fw.count < fw.limit {
		return 0
	}
	return fw.window - time.Since(fw.windowStart)
}

// RetryAfter returns the backoff before retry attempt.
func (fw *FixedWindow) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fw.cfg)
}

// Reset starts a fresh window.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.count = 0
	fw.windowStart = time.Now()
}

// roll must be called with mu held.
func (fw *FixedWindow) roll() {
	if now := time.Now(); now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
