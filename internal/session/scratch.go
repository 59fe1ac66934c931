package session

import (
	"context"
	"sync"
)

// Scratch is per-session mutable state for tool handlers. It dies with its
// session, so handlers never share state across callers.
type Scratch struct {
	mu     sync.Mutex
	values map[string]interface{}
}

// NewScratch creates an empty scratch space
func NewScratch() *Scratch {
	return &Scratch{values: make(map[string]interface{})}
}

// Get returns the value stored under key
func (s *Scratch) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key
func (s *Scratch) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Update applies fn to the current value of key atomically and stores the result
func (s *Scratch) Update(key string, fn func(current interface{}) interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.values[key])
	s.values[key] = next
	return next
}

type scratchKey struct{}

// WithScratch attaches a scratch space to ctx
func WithScratch(ctx context.Context, s *Scratch) context.Context {
	return context.WithValue(ctx, scratchKey{}, s)
}

// ScratchFrom returns the scratch space attached to ctx, or a fresh one
// that is discarded after the call.
func ScratchFrom(ctx context.Context) *Scratch {
	if s, ok := ctx.Value(scratchKey{}).(*Scratch); ok && s != nil {
		return s
	}
	return NewScratch()
}

type idKey struct{}

// WithID attaches the session id to ctx
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFrom returns the session id attached to ctx
func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}
