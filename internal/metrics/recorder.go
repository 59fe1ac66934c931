// Package metrics is the observability sink: structured events go to the
// logger, and aggregate counters are kept for point-in-time snapshots.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/nomadai/concierge/internal/logging"
)

// latencyWindow is how many recent samples feed a rolling average
const latencyWindow = 100

// Outcomes
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
	OutcomeRejected = "rejected"
)

// Event is one flat key/value record
type Event struct {
	Name      string
	SessionID string
	Latency   time.Duration
	Outcome   string
	Fields    map[string]interface{}
}

// rolling keeps the most recent latency samples for one dependency
type rolling struct {
	samples  [latencyWindow]time.Duration
	next     int
	count    int
	total    int64
	failures int64
}

func (r *rolling) add(d time.Duration, failed bool) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % latencyWindow
	if r.count < latencyWindow {
		r.count++
	}
	r.total++
	if failed {
		r.failures++
	}
}

func (r *rolling) average() time.Duration {
	if r.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < r.count; i++ {
		sum += r.samples[i]
	}
	return sum / time.Duration(r.count)
}

// LatencyStats summarizes calls to one external dependency
type LatencyStats struct {
	AvgMs    float64 `json:"avg_ms"`
	Samples  int     `json:"samples"`
	Calls    int64   `json:"calls"`
	Failures int64   `json:"failures"`
}

// CacheStats is the response cache hit ratio
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Snapshot is a point-in-time copy of every counter
type Snapshot struct {
	Timestamp      time.Time               `json:"timestamp"`
	UptimeSeconds  float64                 `json:"uptime_seconds"`
	Requests       map[string]int64        `json:"requests"`
	Errors         map[string]int64        `json:"errors"`
	Latency        map[string]LatencyStats `json:"latency"`
	Cache          CacheStats              `json:"cache"`
	LoopExhausted  int64                   `json:"loop_exhausted"`
	ActiveSessions int                     `json:"active_sessions"`
}

// Recorder collects events and counters. It is safe for concurrent use.
type Recorder struct {
	logger *logging.Logger
	now    func() time.Time

	mu            sync.Mutex
	started       time.Time
	requests      map[string]int64
	errors        map[string]int64
	latency       map[string]*rolling
	cacheHits     int64
	cacheMisses   int64
	loopExhausted int64
	sessions      func() int
}

// NewRecorder creates a recorder that logs events to logger
func NewRecorder(logger *logging.Logger, now func() time.Time) *Recorder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		logger:   logger.Named("events"),
		now:      now,
		started:  now(),
		requests: make(map[string]int64),
		errors:   make(map[string]int64),
		latency:  make(map[string]*rolling),
	}
}

// Emit writes an event as one structured log line
func (r *Recorder) Emit(e Event) {
	fields := []logging.Field{
		logging.String("event_name", e.Name),
		logging.String("session_id", e.SessionID),
		logging.Int64("latency_ms", e.Latency.Milliseconds()),
		logging.String("outcome", e.Outcome),
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, logging.Any(k, e.Fields[k]))
	}

	if e.Outcome == OutcomeError {
		r.logger.Warn(e.Name, fields...)
		return
	}
	r.logger.Info(e.Name, fields...)
}

// IncRequest counts one request in category
func (r *Recorder) IncRequest(category string) {
	r.mu.Lock()
	r.requests[category]++
	r.mu.Unlock()
}

// RecordError counts one error of kind
func (r *Recorder) RecordError(kind string) {
	if kind == "" {
		return
	}
	r.mu.Lock()
	r.errors[kind]++
	r.mu.Unlock()
}

// RecordCache counts a cache lookup
func (r *Recorder) RecordCache(hit bool) {
	r.mu.Lock()
	if hit {
		r.cacheHits++
	} else {
		r.cacheMisses++
	}
	r.mu.Unlock()
}

// RecordLoopExhausted counts a turn that hit the iteration ceiling
func (r *Recorder) RecordLoopExhausted() {
	r.mu.Lock()
	r.loopExhausted++
	r.mu.Unlock()
}

// ObserveLatency records one call to an external dependency
func (r *Recorder) ObserveLatency(dependency string, d time.Duration, err error) {
	r.mu.Lock()
	roll, ok := r.latency[dependency]
	if !ok {
		roll = &rolling{}
		r.latency[dependency] = roll
	}
	roll.add(d, err != nil)
	r.mu.Unlock()
}

// RetryObserver adapts the recorder to the retry envelope's observer hook
func (r *Recorder) RetryObserver() func(dependency string, attempt int, latency time.Duration, err error) {
	return func(dependency string, attempt int, latency time.Duration, err error) {
		r.ObserveLatency(dependency, latency, err)
		if err != nil {
			r.logger.Debug("dependency attempt failed",
				logging.String("dependency", dependency),
				logging.Int("attempt", attempt),
				logging.Int64("latency_ms", latency.Milliseconds()),
				logging.Error(err))
		}
	}
}

// SetSessionGauge installs the function that reports active sessions
func (r *Recorder) SetSessionGauge(fn func() int) {
	r.mu.Lock()
	r.sessions = fn
	r.mu.Unlock()
}

// Snapshot returns a copy of all counters
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	snap := Snapshot{
		Timestamp:     r.now(),
		Requests:      copyCounts(r.requests),
		Errors:        copyCounts(r.errors),
		Latency:       make(map[string]LatencyStats, len(r.latency)),
		LoopExhausted: r.loopExhausted,
		Cache: CacheStats{
			Hits:   r.cacheHits,
			Misses: r.cacheMisses,
		},
	}
	snap.UptimeSeconds = snap.Timestamp.Sub(r.started).Seconds()
	for dep, roll := range r.latency {
		snap.Latency[dep] = LatencyStats{
			AvgMs:    float64(roll.average().Microseconds()) / 1000,
			Samples:  roll.count,
			Calls:    roll.total,
			Failures: roll.failures,
		}
	}
	gauge := r.sessions
	r.mu.Unlock()

	if total := snap.Cache.Hits + snap.Cache.Misses; total > 0 {
		snap.Cache.HitRate = float64(snap.Cache.Hits) / float64(total)
	}
	if gauge != nil {
		snap.ActiveSessions = gauge()
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
