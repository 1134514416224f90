package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenBucketAllowAndRefill(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 5, Burst: 5})

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("expected token available at %d", i)
		}
	}
	if tb.Allow() {
		t.Fatalf("expected no token after burst")
	}

	time.Sleep(250 * time.Millisecond)
	if !tb.Allow() {
		t.Fatalf("expected token after partial refill")
	}
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 1, Burst: 1})
	if !tb.Allow() {
		t.Fatalf("expected first token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTokenBucketReserveAndReset(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 2, Burst: 1})
	if d := tb.Reserve(); d != 0 {
		t.Fatalf("expected token ready on a full bucket, got %v", d)
	}
	if !tb.Allow() {
		t.Fatalf("expected first token")
	}
	if d := tb.Reserve(); d <= 0 || d > 500*time.Millisecond {
		t.Fatalf("expected wait up to one refill interval, got %v", d)
	}
	if tb.Reserve() <= 0 {
		t.Fatalf("reserve must not take a token")
	}

	tb.Reset()
	if !tb.Allow() {
		t.Fatalf("expected token after reset")
	}
}

func TestFixedWindow(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 2})
	if !fw.Allow() || !fw.Allow() {
		t.Fatalf("expected first two to pass")
	}
	if fw.Allow() {
		t.Fatalf("expected third to be blocked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := fw.Wait(ctx); err == nil {
		t.Fatalf("expected wait to honour context while window is full")
	}

	time.Sleep(time.Second)
	if !fw.Allow() {
		t.Fatalf("expected allow after window reset")
	}
}

func TestFixedWindowFractionalRate(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 0.5})
	if !fw.Allow() {
		t.Fatalf("expected at least one request per window")
	}
}

func TestFixedDelay(t *testing.T) {
	delay := 50 * time.Millisecond
	fd := NewFixedDelay(Config{FixedDelay: delay})

	if !fd.Allow() {
		t.Fatalf("expected first allow")
	}
	wait := fd.Reserve()
	if wait <= 0 || wait < delay/2 {
		t.Fatalf("expected wait close to delay; got %v", wait)
	}
	if fd.Allow() {
		t.Fatalf("expected second allow to be rejected")
	}

	fd.Reset()
	if !fd.Allow() {
		t.Fatalf("expected allow after reset")
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2, MaxRetries: 5}

	for attempt := 1; attempt <= 5; attempt++ {
		d := CalculateBackoff(attempt, cfg)
		if d <= 0 {
			t.Fatalf("backoff should be positive")
		}
		if d > cfg.MaxBackoff {
			t.Fatalf("backoff should cap at max")
		}
	}

	if d := CalculateBackoff(0, cfg); d != 0 {
		t.Fatalf("expected no backoff before the first retry")
	}
	if d := CalculateBackoff(10, cfg); d != cfg.MaxBackoff {
		t.Fatalf("expected max backoff when attempts exceed max retries")
	}
}

// instantLimiter never waits so retry tests run quickly.
type instantLimiter struct{ waits int }

func (l *instantLimiter) Wait(context.Context) error   { l.waits++; return nil }
func (l *instantLimiter) Allow() bool                  { return true }
func (l *instantLimiter) Reserve() time.Duration       { return 0 }
func (l *instantLimiter) RetryAfter(int) time.Duration { return 0 }
func (l *instantLimiter) Reset()                       {}

func TestRetryEventuallySucceeds(t *testing.T) {
	l := &instantLimiter{}
	calls := 0
	err := Retry(context.Background(), l, 3, func(int) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || l.waits != 3 {
		t.Fatalf("expected 3 calls and waits, got %d and %d", calls, l.waits)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := Retry(context.Background(), &instantLimiter{}, 5, func(int) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), &instantLimiter{}, 2, func(int) error {
		calls++
		return errors.New("still failing")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected failure after 3 calls, got %v after %d", err, calls)
	}
}

func TestHostConfigs(t *testing.T) {
	hosts := HostConfigs{
		Fallback: Config{RequestsPerSec: 1},
		Hosts: map[string]Config{
			"data.gov.sg": {RequestsPerSec: 3, Burst: 5},
		},
	}

	if got := hosts.For("WWW.Data.gov.sg"); got.RequestsPerSec != 3 || got.Burst != 5 {
		t.Fatalf("unexpected host config: %+v", got)
	}
	fallback := hosts.For("example.com")
	if fallback.RequestsPerSec != 1 || fallback.Burst != DefaultConfig().Burst {
		t.Fatalf("expected defaults applied to fallback, got %+v", fallback)
	}
}

func TestWithDefaultsKeepsZeroRetries(t *testing.T) {
	if got := WithDefaults(Config{MaxRetries: 0}).MaxRetries; got != 0 {
		t.Fatalf("expected zero retries to be kept, got %d", got)
	}
	if got := WithDefaults(Config{MaxRetries: -1}).MaxRetries; got != DefaultConfig().MaxRetries {
		t.Fatalf("expected negative retries to take the default, got %d", got)
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	if _, ok := New(Config{Strategy: StrategyFixedDelay}).(*FixedDelay); !ok {
		t.Fatalf("expected fixed delay limiter")
	}
	if _, ok := New(Config{Strategy: StrategyFixedWindow}).(*FixedWindow); !ok {
		t.Fatalf("expected fixed window limiter")
	}
	if _, ok := New(Config{}).(*TokenBucket); !ok {
		t.Fatalf("expected token bucket by default")
	}
}
