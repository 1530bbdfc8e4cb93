package domain

import "time"

// Role enumerates the access levels an account can hold.
type Role string

const (
	RoleReviewer Role = "reviewer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	switch r {
	case RoleReviewer, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may act on other users' content.
func (r Role) CanModerate() bool {
	return r == RoleManager || r == RoleAdmin
}

// IsAdmin reports whether the role grants administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// PasswordHistoryLimit bounds how many retired password hashes are retained
// per account for reuse checks.
const PasswordHistoryLimit = 10

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  string
	Username            string
	PasswordHash        string
	Role                Role
	RecoveryQuestion    string
	RecoveryAnswerHash  string
	FailedLoginAttempts int
	LockUntil           *time.Time
	LastLoginAttempt    *time.Time
	LastSuccessfulLogin *time.Time
	LastPasswordChange  time.Time
	CreatedAt           time.Time
}

// PasswordHistoryEntry tracks a retired password hash for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	AccountID    string
	PasswordHash string
	SetAt        time.Time
}

// Locked reports whether the account-embedded lock is still in effect at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}
