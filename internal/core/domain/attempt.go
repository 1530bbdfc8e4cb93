package domain

import "time"

// AccountAttempt tracks consecutive failed logins against a username. The
// record exists only while failures accumulate; a successful login removes it.
type AccountAttempt struct {
	Username  string
	Attempts  int
	LockUntil *time.Time
	UpdatedAt time.Time
}

// Locked reports whether the username is still locked at now.
func (a *AccountAttempt) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// LockRemaining returns how long the lock has left at now, or zero when the
// record is not locked.
func (a *AccountAttempt) LockRemaining(now time.Time) time.Duration {
	if !a.Locked(now) {
		return 0
	}
	return a.LockUntil.Sub(now)
}

// OriginAttempt tracks consecutive failed logins from a network address,
// independent of which usernames were targeted.
type OriginAttempt struct {
	Address        string
	Attempts       int
	BlacklistUntil *time.Time
	UpdatedAt      time.Time
}

// Blacklisted reports whether the address is still blacklisted at now.
func (o *OriginAttempt) Blacklisted(now time.Time) bool {
	return o.BlacklistUntil != nil && o.BlacklistUntil.After(now)
}
