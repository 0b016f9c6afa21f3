package agent

import (
	"sync"
	"time"

	"github.com/ashureev/truthguard/internal/domain"
)

// DefaultSessionTTL is how long an upstream session is reused.
const DefaultSessionTTL = 6 * time.Hour

// SessionStore maps an identity to its upstream session.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Get returns the live session for identity. Expired entries are reported as absent.
	Get(identity string) (domain.Session, bool)

	// Put stores session for identity, replacing any previous entry.
	Put(identity string, session domain.Session)

	// Delete drops the entry for identity.
	Delete(identity string)

	// DeleteIf drops the entry for identity only while it still holds handle.
	// It reports whether an entry was removed.
	DeleteIf(identity, handle string) bool
}

// StoreOption configures a MemorySessionStore.
type StoreOption func(*MemorySessionStore)

// WithClock overrides the time source used to evaluate expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemorySessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemorySessionStore is a process-local SessionStore. Expiry is evaluated
// lazily on read; stale entries stay in the map until overwritten.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore creates an empty store. A non-positive ttl selects DefaultSessionTTL.
func NewMemorySessionStore(ttl time.Duration, opts ...StoreOption) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &MemorySessionStore{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the session for identity if it is younger than the TTL.
func (s *MemorySessionStore) Get(identity string) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[identity]
	if !ok || !sess.ValidAt(s.now(), s.ttl) {
		return domain.Session{}, false
	}
	return sess, true
}

// Put stores session for identity, overwriting any stale entry.
func (s *MemorySessionStore) Put(identity string, session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[identity] = session
}

// Delete removes the entry for identity.
func (s *MemorySessionStore) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identity)
}

// DeleteIf removes the entry for identity if its handle matches.
func (s *MemorySessionStore) DeleteIf(identity, handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[identity]; ok && sess.Handle == handle {
		delete(s.sessions, identity)
		return true
	}
	return false
}

// Len returns the number of entries, including expired ones not yet overwritten.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// TTL returns the configured session lifetime.
func (s *MemorySessionStore) TTL() time.Duration {
	return s.ttl
}
