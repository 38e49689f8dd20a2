package session

import "time"

// Session is one authenticated login.
//
// Values handed out by the Registry are copies; mutate through
// Registry.Update.
type Session struct {
	ID     string
	UserID string
	Email  string
	Role   string

	IssuedAt     time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	Remember     bool

	AccessToken string
	// RefreshHash is the fingerprint of the refresh token bound to this
	// session. The plaintext token is never stored.
	RefreshHash [32]byte

	ClientIP  string
	UserAgent string
}

// ExpiryReason says why a session is no longer live.
type ExpiryReason string

const (
	NotExpired ExpiryReason = ""
	ReasonHard ExpiryReason = "expired"
	ReasonIdle ExpiryReason = "idle"
)

// Expiry reports whether s is past its absolute expiry or has been idle for
// longer than idle at now.
func (s *Session) Expiry(now time.Time, idle time.Duration) ExpiryReason {
	if now.After(s.ExpiresAt) {
		return ReasonHard
	}
	if idle > 0 && now.Sub(s.LastActivity) > idle {
		return ReasonIdle
	}
	return NotExpired
}

// Binding is the refresh index entry of a session.
type Binding struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}
