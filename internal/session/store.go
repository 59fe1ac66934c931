package session

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
)

// Defaults
const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxMessages = 40
	DefaultMaxBytes    = 16 * 1024
	DefaultShards      = 16
	MaxIDLength        = 128
)

// Options configures a Store. MaxMessages and MaxBytes bound the history
// window: both what a session keeps and what a restore may seed.
type Options struct {
	TTL         time.Duration
	MaxMessages int
	MaxBytes    int
	Shards      int
	Now         func() time.Time
	Logger      *logging.Logger
	// OnEvict is called (outside any lock) for each session removed by the sweeper
	OnEvict func(id string)
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Store maps session ids to sessions, sharded by id
type Store struct {
	opts   Options
	shards []*shard

	sweepMu   sync.Mutex
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewStore creates a session store
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	s := &Store{opts: opts, shards: make([]*shard, opts.Shards)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

// ValidateID checks a caller-supplied session id
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewInvalidRequestError("session_id", "session_id is required")
	}
	if len(id) > MaxIDLength {
		return apperrors.NewInvalidRequestError("session_id", "session_id is too long")
	}
	return nil
}

func (s *Store) shard(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Acquire returns the resident session for id, creating it when absent or
// expired. A newly created session is seeded from clientContext; context
// is ignored for a session that is still resident.
func (s *Store) Acquire(id string, clientContext []llmtypes.Message) *Session {
	now := s.opts.Now()
	sh := s.shard(id)

	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if ok && !sess.expired(now, s.opts.TTL) {
		sess.touch(now)
		return sess
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.sessions[id]; ok && !sess.expired(now, s.opts.TTL) {
		sess.touch(now)
		return sess
	}

	sess = newSession(id, now)
	if seed := s.Sanitize(clientContext); len(seed) > 0 {
		sess.messages = seed
		sess.restored = true
		s.opts.Logger.Debug("session restored from client context",
			logging.String("session_id", id),
			logging.Int("messages", len(seed)))
	}
	sh.sessions[id] = sess
	return sess
}

// Get returns the resident, unexpired session for id
func (s *Store) Get(id string) (*Session, bool) {
	sh := s.shard(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok || sess.expired(s.opts.Now(), s.opts.TTL) {
		return nil, false
	}
	return sess, true
}

// Commit stores the compacted history of a turn and touches the session.
// Tool traffic is dropped, so the resident history is exactly what Sanitize
// would rebuild from the echoed context.
func (s *Store) Commit(sess *Session, history []llmtypes.Message) {
	sess.commit(s.Sanitize(history), s.opts.Now())
}

// Reset removes a session. It reports whether one was resident.
func (s *Store) Reset(id string) bool {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.sessions[id]
	delete(sh.sessions, id)
	return ok
}

// Count returns the number of resident sessions
func (s *Store) Count() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Sanitize reduces a history to its window: only user and assistant text
// survives, newest first until the count or byte cap is hit. Applying it
// twice yields the same result.
func (s *Store) Sanitize(clientContext []llmtypes.Message) []llmtypes.Message {
	if len(clientContext) == 0 {
		return nil
	}

	var kept []llmtypes.Message
	bytes := 0
	for i := len(clientContext) - 1; i >= 0; i-- {
		msg := clientContext[i]
		if msg.Role != llmtypes.RoleUser && msg.Role != llmtypes.RoleAssistant {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if len(kept) >= s.opts.MaxMessages || bytes+len(content) > s.opts.MaxBytes {
			break
		}
		bytes += len(content)
		kept = append(kept, llmtypes.Message{Role: msg.Role, Content: content})
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return trimHistory(kept)
}

// Sweep evicts expired sessions that are not mid-turn and returns how many
// were removed.
func (s *Store) Sweep() int {
	now := s.opts.Now()
	var evicted []string

	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.expired(now, s.opts.TTL) && !sess.busy() {
				delete(sh.sessions, id)
				evicted = append(evicted, id)
			}
		}
		sh.mu.Unlock()
	}

	for _, id := range evicted {
		s.opts.Logger.Debug("session expired", logging.String("session_id", id))
		if s.opts.OnEvict != nil {
			s.opts.OnEvict(id)
		}
	}
	return len(evicted)
}

// StartSweeper runs Sweep every interval until Stop is called
func (s *Store) StartSweeper(interval time.Duration) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.stopSweep != nil || interval <= 0 {
		return
	}
	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})
	stop, done := s.stopSweep, s.sweepDone

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.opts.Logger.Info("swept expired sessions", logging.Int("evicted", n))
				}
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the sweeper
func (s *Store) Stop() {
	s.sweepMu.Lock()
	stop, done := s.stopSweep, s.sweepDone
	s.stopSweep, s.sweepDone = nil, nil
	s.sweepMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
