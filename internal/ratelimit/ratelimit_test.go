package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// TestLimiter_BoundaryScenario checks bucket exhaustion and refill at an
// exact boundary: capacity=10, rate=1/s, 10 requests at t=0 all succeed,
// the 11th fails, and one more succeeds at t=1s.
func TestLimiter_BoundaryScenario(t *testing.T) {
	l := New(60, 10) // 60/minute == 1/s
	defer l.Close()

	clock := time.Now()
	l.now = func() time.Time { return clock }

	for i := 0; i < 10; i++ {
		if err := l.Allow("client1"); err != nil {
			t.Fatalf("request %d: expected success, got %v", i, err)
		}
	}

	if err := l.Allow("client1"); err == nil {
		t.Fatal("11th request at t=0 expected to fail")
	}

	clock = clock.Add(time.Second)
	if err := l.Allow("client1"); err != nil {
		t.Fatalf("request at t=1s expected to succeed after refill: %v", err)
	}
}

func TestLimiter_PerClientIsolation(t *testing.T) {
	l := New(60, 1)
	defer l.Close()

	if err := l.Allow("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("a"); err == nil {
		t.Fatal("expected client a to be exhausted")
	}
	if err := l.Allow("b"); err != nil {
		t.Fatalf("client b should have its own bucket: %v", err)
	}
}

func TestLimiter_ZeroPerMinuteDisables(t *testing.T) {
	l := New(0, 10)
	defer l.Close()

	for i := 0; i < 1000; i++ {
		if err := l.Allow("client1"); err != nil {
			t.Fatalf("rate limiting should be disabled, got error: %v", err)
		}
	}
}

func TestLimiter_RetryAfterIsPositive(t *testing.T) {
	l := New(60, 1)
	defer l.Close()

	if err := l.Allow("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := l.Allow("a")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message carrying retry_after")
	}
	var rl *scouterr.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected *scouterr.RateLimitError, got %T", err)
	}
	if rl.RetryAfterSeconds <= 0 {
		t.Errorf("RetryAfterSeconds = %v, want > 0", rl.RetryAfterSeconds)
	}
}

func TestLimiter_SweepRemovesIdleBuckets(t *testing.T) {
	l := New(60, 10)
	defer l.Close()

	clock := time.Now()
	l.now = func() time.Time { return clock }

	if err := l.Allow("stale"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := l.buckets["stale"]; !ok {
		t.Fatal("expected bucket to exist after first use")
	}

	clock = clock.Add(2 * time.Hour)
	l.sweepOnce()

	if _, ok := l.buckets["stale"]; ok {
		t.Error("expected idle bucket to be swept after 2 hours")
	}
}
