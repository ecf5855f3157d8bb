package domain

import "time"

// Session is a refresh-token session cached in Redis. Role is captured at
// login time so a token refresh does not need a profile lookup.
type Session struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Role      Role              `json:"role,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}

// RemainingTTL returns how long the session stays valid past reference,
// or zero when it has already expired.
func (s *Session) RemainingTTL(reference time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	if ttl := s.ExpiresAt.Sub(reference); ttl > 0 {
		return ttl
	}
	return 0
}
