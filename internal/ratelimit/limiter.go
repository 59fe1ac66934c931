// Package ratelimit provides fixed-window admission control per session
// and in aggregate. Rejection is immediate; nothing is queued.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
)

// Rejection scopes
const (
	ScopeSession = "session"
	ScopeGlobal  = "global"
)

// Defaults
const (
	DefaultPerSession = 20
	DefaultGlobal     = 200
	DefaultWindow     = time.Minute
	DefaultShards     = 16
)

// Options configures a Limiter
type Options struct {
	PerSession int
	Global     int
	Window     time.Duration
	Shards     int
	Now        func() time.Time
}

// window is a fixed-window counter
type window struct {
	start time.Time
	count int
}

// roll resets the counter when start is a later boundary
func (w *window) roll(start time.Time) {
	if !w.start.Equal(start) {
		w.start = start
		w.count = 0
	}
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter admits at most PerSession calls per key and Global calls in
// total within each wall-clock window.
type Limiter struct {
	perSession int
	global     int
	window     time.Duration
	now        func() time.Time
	shards     []*shard

	globalMu  sync.Mutex
	globalWin window

	statsMu  sync.Mutex
	admitted int64
	rejected map[string]int64

	pruneMu   sync.Mutex
	stopPrune chan struct{}
	pruneDone chan struct{}
}

// Stats is a point-in-time view of limiter activity
type Stats struct {
	Admitted    int64            `json:"admitted"`
	Rejected    map[string]int64 `json:"rejected"`
	TrackedKeys int              `json:"tracked_keys"`
}

// New creates a Limiter
func New(opts Options) *Limiter {
	if opts.PerSession <= 0 {
		opts.PerSession = DefaultPerSession
	}
	if opts.Global <= 0 {
		opts.Global = DefaultGlobal
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Limiter{
		perSession: opts.PerSession,
		global:     opts.Global,
		window:     opts.Window,
		now:        opts.Now,
		shards:     make([]*shard, opts.Shards),
		rejected:   make(map[string]int64),
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	return l
}

func (l *Limiter) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Allow admits one call for key or returns a *RateLimitedError. Both
// ceilings are checked before either counter moves, so a rejected call
// consumes no budget.
func (l *Limiter) Allow(key string) error {
	now := l.now()
	start := now.Truncate(l.window)
	retryAfter := start.Add(l.window).Sub(now)

	sh := l.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.windows[key]
	if !ok {
		w = &window{start: start}
		sh.windows[key] = w
	}
	w.roll(start)
	if w.count >= l.perSession {
		l.recordRejection(ScopeSession)
		return apperrors.NewRateLimitedError(ScopeSession, retryAfter)
	}

	l.globalMu.Lock()
	defer l.globalMu.Unlock()
	l.globalWin.roll(start)
	if l.globalWin.count >= l.global {
		l.recordRejection(ScopeGlobal)
		return apperrors.NewRateLimitedError(ScopeGlobal, retryAfter)
	}

	w.count++
	l.globalWin.count++

	l.statsMu.Lock()
	l.admitted++
	l.statsMu.Unlock()
	return nil
}

func (l *Limiter) recordRejection(scope string) {
	l.statsMu.Lock()
	l.rejected[scope]++
	l.statsMu.Unlock()
}

// Remaining returns how many more calls key may make in the current window
func (l *Limiter) Remaining(key string) int {
	start := l.now().Truncate(l.window)
	sh := l.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	left := l.perSession
	if w, ok := sh.windows[key]; ok && w.start.Equal(start) {
		left -= w.count
	}

	l.globalMu.Lock()
	defer l.globalMu.Unlock()
	global := l.global
	if l.globalWin.start.Equal(start) {
		global -= l.globalWin.count
	}
	if global < left {
		left = global
	}
	return left
}

// Prune drops counters from past windows and returns how many were removed
func (l *Limiter) Prune() int {
	start := l.now().Truncate(l.window)
	removed := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, w := range sh.windows {
			if w.start.Before(start) {
				delete(sh.windows, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StartPruner runs Prune every interval until Stop is called
func (l *Limiter) StartPruner(interval time.Duration) {
	l.pruneMu.Lock()
	defer l.pruneMu.Unlock()
	if l.stopPrune != nil || interval <= 0 {
		return
	}
	l.stopPrune = make(chan struct{})
	l.pruneDone = make(chan struct{})
	stop, done := l.stopPrune, l.pruneDone

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Prune()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the pruner
func (l *Limiter) Stop() {
	l.pruneMu.Lock()
	stop, done := l.stopPrune, l.pruneDone
	l.stopPrune, l.pruneDone = nil, nil
	l.pruneMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Stats returns admission counters
func (l *Limiter) Stats() Stats {
	tracked := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		tracked += len(sh.windows)
		sh.mu.Unlock()
	}

	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	rejected := make(map[string]int64, len(l.rejected))
	for k, v := range l.rejected {
		rejected[k] = v
	}
	return Stats{Admitted: l.admitted, Rejected: rejected, TrackedKeys: tracked}
}
