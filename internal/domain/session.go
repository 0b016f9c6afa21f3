package domain

import (
	"time"
)

// Session is a conversation handle held by the upstream verification agent.
type Session struct {
	Handle    string
	CreatedAt time.Time
}

// ValidAt reports whether the session is still usable at now for the given TTL.
func (s Session) ValidAt(now time.Time, ttl time.Duration) bool {
	if s.Handle == "" {
		return false
	}
	return now.Sub(s.CreatedAt) < ttl
}

// Remaining returns the time until the session expires.
// Returns 0 if the session has already expired.
func (s Session) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := s.CreatedAt.Add(ttl).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
