package sshpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmagar/scoutmcp/internal/inventory"
)

type fakeSession struct {
	name   string
	closed atomic.Bool
}

func (f *fakeSession) Run(ctx context.Context, cmd string) (string, string, int, error) {
	return "", "", 0, nil
}
func (f *fakeSession) NewSFTPClient() (SFTPClient, error) { return nil, fmt.Errorf("not supported in fake") }
func (f *fakeSession) Open() bool                         { return !f.closed.Load() }
func (f *fakeSession) Close() error                       { f.closed.Store(true); return nil }

func fakeDial(delay time.Duration, dialCount *int32) func(ctx context.Context, host inventory.HostRecord) (Session, error) {
	return func(ctx context.Context, host inventory.HostRecord) (Session, error) {
		if dialCount != nil {
			atomic.AddInt32(dialCount, 1)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &fakeSession{name: host.Name}, nil
	}
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPool_AcquireReusesSession(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	var dials int32
	p.dialFn = fakeDial(0, &dials)

	host := inventory.HostRecord{Name: "web1", Address: "10.0.0.1", Port: 22}

	s1, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s2, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1 != s2 {
		t.Error("expected second Acquire to reuse the same session")
	}
	if dials != 1 {
		t.Errorf("dialed %d times, want 1", dials)
	}
}

func TestPool_RedialsAfterBrokenSession(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	var dials int32
	p.dialFn = fakeDial(0, &dials)

	host := inventory.HostRecord{Name: "web1", Address: "10.0.0.1", Port: 22}

	s1, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s1.Close() // simulate the transport breaking

	s2, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1 == s2 {
		t.Error("expected a fresh session after the old one broke")
	}
	if dials != 2 {
		t.Errorf("dialed %d times, want 2", dials)
	}
}

func TestPool_EvictsOldestAtCapacity(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 2, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	p.dialFn = fakeDial(0, nil)

	h1 := inventory.HostRecord{Name: "h1"}
	h2 := inventory.HostRecord{Name: "h2"}
	h3 := inventory.HostRecord{Name: "h3"}

	s1, _ := p.Acquire(context.Background(), h1)
	_, _ = p.Acquire(context.Background(), h2)
	// Touch h1 so h2 becomes the least-recently-used entry.
	_, _ = p.Acquire(context.Background(), h1)
	_, _ = p.Acquire(context.Background(), h3)

	if p.Stats().Size != 2 {
		t.Fatalf("pool size = %d, want 2", p.Stats().Size)
	}
	fs1 := s1.(*fakeSession)
	if fs1.closed.Load() {
		t.Error("h1's session should have survived eviction (most recently used)")
	}
}

func TestPool_DiscardForcesRedial(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	var dials int32
	p.dialFn = fakeDial(0, &dials)

	host := inventory.HostRecord{Name: "web1"}
	_, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Discard(host.Name)

	if _, err := p.Acquire(context.Background(), host); err != nil {
		t.Fatalf("Acquire after discard: %v", err)
	}
	if dials != 2 {
		t.Errorf("dialed %d times, want 2", dials)
	}
}

func TestPool_ConcurrentDialsToDistinctHostsOverlap(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	p.dialFn = fakeDial(150*time.Millisecond, nil)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			host := inventory.HostRecord{Name: fmt.Sprintf("h%d", i)}
			if _, err := p.Acquire(context.Background(), host); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("dials to distinct hosts appear serialized: took %v for 5x150ms", elapsed)
	}
}

func TestPool_SameHostSerializesDial(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	var dials int32
	p.dialFn = fakeDial(100*time.Millisecond, &dials)

	host := inventory.HostRecord{Name: "web1"}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Acquire(context.Background(), host); err != nil {
				t.Errorf("Acquire: %v", err)
			}
		}()
	}
	wg.Wait()

	if dials != 1 {
		t.Errorf("dialed %d times for same host, want 1", dials)
	}
}

func TestPool_ReaperEvictsIdleSessions(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: 60 * time.Millisecond, ConnectTimeout: time.Second})
	p.dialFn = fakeDial(0, nil)

	host := inventory.HostRecord{Name: "web1"}
	s, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().Size == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if p.Stats().Size != 0 {
		t.Fatal("expected reaper to evict the idle session")
	}
	if !s.(*fakeSession).closed.Load() {
		t.Error("expected evicted session to be closed")
	}
}

func TestPool_AcquireAfterCloseFails(t *testing.T) {
	p := newTestPool(t, Config{MaxPoolSize: 10, IdleTimeout: time.Hour, ConnectTimeout: time.Second})
	p.dialFn = fakeDial(0, nil)
	p.Close()

	if _, err := p.Acquire(context.Background(), inventory.HostRecord{Name: "web1"}); err == nil {
		t.Error("expected Acquire to fail after Close")
	}
}
