// Package session keeps per-user server-side state across requests.
//
// Sessions live in a bounded in-memory LRU with an idle timeout and are
// referenced from the client by a signed cookie carrying the session id.
// Each Session carries its own lock so that login sequences spanning several
// attribute reads and writes are serialized per user without any global lock.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Well-known attribute keys.
const (
	ReturnToURLKey      = "return_to_url"
	UserProfileKey      = "user_profile"
	IdentityProviderKey = "identity_provider"
)

// ErrNotFound is returned when a request carries no live session.
var ErrNotFound = errors.New("session not found")

// Session is a single user's attribute map.
type Session struct {
	mu      sync.Mutex
	attrMu  sync.RWMutex
	id      string
	created time.Time
	attrs   map[string]interface{}
	invalid atomic.Bool
	store   *Store
}

func newSession(id string, store *Store) *Session {
	return &Session{
		id:      id,
		created: time.Now(),
		attrs:   make(map[string]interface{}),
		store:   store,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Created returns the creation time.
func (s *Session) Created() time.Time { return s.created }

// Lock acquires the per-session lock used to serialize multi-step
// sequences such as login. It does not guard individual Get/Set calls.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Get returns the attribute stored under key.
func (s *Session) Get(key string) (interface{}, bool) {
	s.attrMu.RLock()
	defer s.attrMu.RUnlock()
	v, ok := s.attrs[key]
	return v, ok
}

// GetString returns a string attribute or "" when absent or of another type.
func (s *Session) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Set stores an attribute.
func (s *Session) Set(key string, value interface{}) {
	s.attrMu.Lock()
	s.attrs[key] = value
	s.attrMu.Unlock()
}

// Delete removes an attribute.
func (s *Session) Delete(key string) {
	s.attrMu.Lock()
	delete(s.attrs, key)
	s.attrMu.Unlock()
}

// Keys returns the attribute names in sorted order.
func (s *Session) Keys() []string {
	s.attrMu.RLock()
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	s.attrMu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Invalidate drops all attributes and removes the session from its store.
// Later lookups with the same cookie find nothing.
func (s *Session) Invalidate() {
	if !s.invalid.CompareAndSwap(false, true) {
		return
	}
	s.attrMu.Lock()
	s.attrs = make(map[string]interface{})
	s.attrMu.Unlock()
	if s.store != nil {
		s.store.remove(s.id)
	}
}

// Valid reports whether the session has not been invalidated.
func (s *Session) Valid() bool { return !s.invalid.Load() }

type contextKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session placed in ctx by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}
