package domain

import "time"

// Session represents an authenticated browser session backed by the session
// store. The cookie carries a signed session ID; everything else lives here.
type Session struct {
	ID        string
	AccountID string
	Username  string
	Role      Role
	Remember  bool
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}
