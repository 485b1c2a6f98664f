// Package sshpool implements a connection pool: at most one live SSH
// session per host, bounded by a global LRU cap, serialized per-host
// creation, and background reaping of idle sessions.
// The lock hierarchy is strict: a caller acquires the per-host mutex first
// and only then, briefly, the meta mutex that guards the pool's structure
// -- the meta mutex is never held across network I/O.
package sshpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/go-multierror"

	"github.com/jmagar/scoutmcp/internal/inventory"
	"github.com/jmagar/scoutmcp/internal/logging"
)

// Config configures the Pool. Zero values are not valid; use
// internal/config.Config to assemble one (it carries the equivalent
// defaults and validation).
type Config struct {
	MaxPoolSize    int
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration // 0 disables lifetime eviction
	ConnectTimeout time.Duration
	KnownHostsPath string
}

// Stats is a snapshot of pool occupancy, for diagnostics.
type Stats struct {
	Size    int
	MaxSize int
}

// Pool owns every live SSH session. Construct with New.
type Pool struct {
	cfg    Config
	dialFn func(ctx context.Context, host inventory.HostRecord) (Session, error)

	metaMu  sync.Mutex
	hostMus map[string]*sync.Mutex
	cache   *lru.Cache // host name -> *entry

	pendingClose []Session // accumulated under metaMu by onEvicted, closed after unlock

	closed   bool
	stopCh   chan struct{}
	reaperWG sync.WaitGroup
}

// New constructs a Pool. The reaper goroutine starts immediately.
func New(cfg Config) (*Pool, error) {
	d := newDialer(cfg.ConnectTimeout, cfg.KnownHostsPath)
	p := &Pool{
		cfg:     cfg,
		dialFn:  d.dial,
		hostMus: make(map[string]*sync.Mutex),
		stopCh:  make(chan struct{}),
	}

	cache, err := lru.NewWithEvict(cfg.MaxPoolSize, p.onEvicted)
	if err != nil {
		return nil, fmt.Errorf("constructing pool cache: %w", err)
	}
	p.cache = cache

	p.reaperWG.Add(1)
	go p.reap()

	return p, nil
}

// onEvicted is invoked synchronously by the lru.Cache while metaMu is held
// (every call site that can trigger eviction holds metaMu already). It must
// never block: closing an SSH session can do network I/O, so the actual
// Close happens after the caller releases metaMu.
func (p *Pool) onEvicted(key interface{}, value interface{}) {
	e := value.(*entry)
	p.pendingClose = append(p.pendingClose, e.session)
}

func (p *Pool) flushPendingClose() {
	p.metaMu.Lock()
	victims := p.pendingClose
	p.pendingClose = nil
	p.metaMu.Unlock()

	for _, sess := range victims {
		if err := sess.Close(); err != nil {
			logging.Global().Debug().Err(err).Msg("closing evicted session")
		}
	}
}

func (p *Pool) hostMutex(host string) *sync.Mutex {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	mu, ok := p.hostMus[host]
	if !ok {
		mu = &sync.Mutex{}
		p.hostMus[host] = mu
	}
	return mu
}

// Acquire returns the pooled session for host, dialing one if none exists
// or the existing one is broken. Two concurrent Acquire calls for the same
// host serialize on its per-host mutex; calls for distinct hosts never
// contend with each other.
func (p *Pool) Acquire(ctx context.Context, host inventory.HostRecord) (Session, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	hostMu := p.hostMutex(host.Name)
	hostMu.Lock()
	defer hostMu.Unlock()

	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	if sess, ok := p.touch(host.Name); ok {
		if sess.Open() {
			return sess, nil
		}
		p.remove(host.Name)
		p.flushPendingClose()
	}

	sess, err := p.dialFn(ctx, host)
	if err != nil {
		return nil, err
	}

	p.insert(host.Name, sess)
	p.flushPendingClose() // dialing may have pushed the pool over capacity
	return sess, nil
}

// Release records that the caller is done with a borrowed session for now.
// Sessions are not exclusively checked out (concurrent borrows of the same
// host's session are permitted), so Release has no locking effect; it only
// exists to keep the Pool's external surface symmetric with Acquire.
func (p *Pool) Release(host string) {}

// Discard evicts and closes the pooled session for host, if any. Used by
// the Dispatcher's connection-retry protocol: on dial failure, discard the
// stale entry and Acquire once more.
func (p *Pool) Discard(host string) {
	hostMu := p.hostMutex(host)
	hostMu.Lock()
	defer hostMu.Unlock()

	p.remove(host)
	p.flushPendingClose()
}

func (p *Pool) touch(host string) (Session, bool) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	v, ok := p.cache.Get(host) // Get itself promotes host to most-recently-used
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	e.lastUsed = time.Now()
	return e.session, true
}

func (p *Pool) insert(host string, sess Session) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	now := time.Now()
	p.cache.Add(host, &entry{session: sess, lastUsed: now, createdAt: now})
}

func (p *Pool) remove(host string) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	p.cache.Remove(host)
}

func (p *Pool) isClosed() bool {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	return p.closed
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	return Stats{Size: p.cache.Len(), MaxSize: p.cfg.MaxPoolSize}
}

// reap wakes every IdleTimeout/2 and evicts sessions idle past IdleTimeout
// or, if MaxLifetime is set, older than MaxLifetime.
func (p *Pool) reap() {
	defer p.reaperWG.Done()

	interval := p.cfg.IdleTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	now := time.Now()

	p.metaMu.Lock()
	for _, key := range p.cache.Keys() {
		v, ok := p.cache.Peek(key)
		if !ok {
			continue
		}
		e := v.(*entry)
		expired := now.Sub(e.lastUsed) > p.cfg.IdleTimeout
		aged := p.cfg.MaxLifetime > 0 && now.Sub(e.createdAt) > p.cfg.MaxLifetime
		if expired || aged {
			p.cache.Remove(key)
		}
	}
	p.metaMu.Unlock()

	p.flushPendingClose()
}

// Close stops the reaper and closes every pooled session, aggregating any
// close errors via multierror rather than stopping at the first failure.
func (p *Pool) Close() error {
	p.metaMu.Lock()
	if p.closed {
		p.metaMu.Unlock()
		return nil
	}
	p.closed = true
	keys := p.cache.Keys()
	for _, key := range keys {
		p.cache.Remove(key)
	}
	p.metaMu.Unlock()

	close(p.stopCh)
	p.reaperWG.Wait()

	p.metaMu.Lock()
	victims := p.pendingClose
	p.pendingClose = nil
	p.metaMu.Unlock()

	var result *multierror.Error
	for _, sess := range victims {
		if err := sess.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
