// Package session keeps per-caller conversation history in memory with a
// bounded lifetime. Sessions lost to eviction or restart can be re-seeded
// from the history the client echoes back.
package session

import (
	"sync"
	"time"

	"github.com/nomadai/concierge/internal/llmtypes"
)

// Session is one caller's conversation. The turn lock serializes turns for
// the same session; history accessors expect the caller to hold it.
type Session struct {
	ID string

	turn sync.Mutex

	mu           sync.Mutex
	messages     []llmtypes.Message
	lastActivity time.Time
	restored     bool

	scratch *Scratch
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		lastActivity: now,
		scratch:      NewScratch(),
	}
}

// Lock acquires the turn lock
func (s *Session) Lock() { s.turn.Lock() }

// Unlock releases the turn lock
func (s *Session) Unlock() { s.turn.Unlock() }

// busy reports whether a turn is in progress
func (s *Session) busy() bool {
	if s.turn.TryLock() {
		s.turn.Unlock()
		return false
	}
	return true
}

// Messages returns a copy of the history
func (s *Session) Messages() []llmtypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// Len returns the number of messages in the history
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Restored reports whether the session was seeded from client context
func (s *Session) Restored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restored
}

// LastActivity returns the time of the last touch
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Scratch returns the session's tool state
func (s *Session) Scratch() *Scratch {
	return s.scratch
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !now.Before(s.lastActivity.Add(ttl))
}

// commit replaces the history
func (s *Session) commit(history []llmtypes.Message, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = cloneMessages(history)
	s.lastActivity = now
}

// trimHistory drops leading entries until the history opens with a user turn
func trimHistory(msgs []llmtypes.Message) []llmtypes.Message {
	start := 0
	for start < len(msgs) && msgs[start].Role != llmtypes.RoleUser {
		start++
	}
	return msgs[start:]
}

func cloneMessages(src []llmtypes.Message) []llmtypes.Message {
	if len(src) == 0 {
		return nil
	}
	dst := make([]llmtypes.Message, len(src))
	for i, msg := range src {
		dst[i] = msg
		if len(msg.ToolCalls) > 0 {
			dst[i].ToolCalls = append([]llmtypes.ToolCall(nil), msg.ToolCalls...)
		}
	}
	return dst
}
