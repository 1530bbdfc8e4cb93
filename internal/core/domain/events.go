package domain

import "time"

// AccountRegisteredEvent represents the payload for auth.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Username     string
	Role         string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// AccountLockedEvent represents the payload for auth.account.locked messages.
type AccountLockedEvent struct {
	EventID   string
	Username  string
	Attempts  int
	LockedAt  time.Time
	LockUntil time.Time
	Metadata  map[string]any
}

// OriginBlacklistedEvent represents the payload for auth.origin.blacklisted messages.
type OriginBlacklistedEvent struct {
	EventID       string
	Address       string
	Attempts      int
	BlacklistedAt time.Time
	Metadata      map[string]any
}

// PasswordChangedEvent represents the payload for auth.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	ChangedBy string
	Metadata  map[string]any
}

// PasswordResetGrantedEvent represents the payload for auth.password.reset_granted messages.
type PasswordResetGrantedEvent struct {
	EventID   string
	AccountID string
	GrantID   string
	GrantedAt time.Time
	ExpiresAt time.Time
	IPAddress *string
	Metadata  map[string]any
}
