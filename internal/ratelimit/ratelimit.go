// Package ratelimit implements a per-client token bucket. It is hand-rolled
// rather than built on golang.org/x/time/rate: callers and tests need to
// observe exact floating-point bucket internals (capacity, refill rate,
// current tokens, last refill time) that x/time/rate's Reservation-based
// API does not expose. See DESIGN.md for the full justification.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jmagar/scoutmcp/internal/scouterr"
)

// sweepIdleAfter bounds the age of idle buckets the background sweep removes.
const sweepIdleAfter = time.Hour

// bucket is one client's token bucket.
type bucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

// Limiter guards request admission per client key.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   float64
	refillRate float64
	disabled   bool
	now        func() time.Time
	stopCh     chan struct{}
	sweepWG    sync.WaitGroup
}

// New constructs a Limiter. perMinute is the per-client refill budget;
// burst is the bucket capacity. A perMinute of 0 disables rate limiting
// entirely (Allow always succeeds).
func New(perMinute int, burst int) *Limiter {
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		capacity:   float64(burst),
		refillRate: float64(perMinute) / 60.0,
		disabled:   perMinute == 0,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	l.sweepWG.Add(1)
	go l.sweepLoop()
	return l
}

// Allow consumes one token from clientKey's bucket, creating it at full
// capacity on first use. It returns *scouterr.RateLimitError when the
// bucket is empty.
func (l *Limiter) Allow(clientKey string) error {
	if l.disabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[clientKey]
	if !ok {
		b = &bucket{capacity: l.capacity, refillRate: l.refillRate, tokens: l.capacity, lastRefill: now}
		l.buckets[clientKey] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = minF(b.capacity, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now
	}

	if b.tokens < 1 {
		retryAfter := (1 - b.tokens) / b.refillRate
		return &scouterr.RateLimitError{RetryAfterSeconds: retryAfter}
	}
	b.tokens--
	return nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// sweepLoop periodically removes buckets idle longer than sweepIdleAfter,
// bounding memory for a long-running process with many transient clients.
func (l *Limiter) sweepLoop() {
	defer l.sweepWG.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *Limiter) sweepOnce() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > sweepIdleAfter {
			delete(l.buckets, key)
		}
	}
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.stopCh)
	l.sweepWG.Wait()
}
