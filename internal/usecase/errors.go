package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the provided username or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the username is under a failure lock; the login
	// path surfaces it identically to invalid credentials.
	ErrAccountLocked = errors.New("account locked")
	// ErrOriginBlacklisted indicates the requesting address is blacklisted.
	ErrOriginBlacklisted = errors.New("origin blacklisted")
	// ErrUsernameTaken indicates the requested username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrPasswordMismatch indicates the password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrGrantExpired indicates the grant does not exist, expired, or was already used.
	ErrGrantExpired = errors.New("grant expired or already used")
	// ErrUnknownQuestion indicates the recovery question is not one of the supported set.
	ErrUnknownQuestion = errors.New("unknown recovery question")
	// ErrRecoveryMismatch indicates the username, question, or answer did not match.
	ErrRecoveryMismatch = errors.New("recovery details do not match")
	// ErrPasswordReuse indicates the new password matches the current one or a retained retired hash.
	ErrPasswordReuse = errors.New("password was used recently")
	// ErrCurrentPasswordInvalid indicates the supplied current password is wrong.
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	// ErrInvalidSession indicates the session cookie is missing, malformed, or revoked.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionExpired indicates the session expired before validation.
	ErrSessionExpired = errors.New("session expired")
)

// LockoutError reports that an account lock is in effect, carrying how long
// remains. Only the credential probe path discloses the countdown.
type LockoutError struct {
	RetryAfter time.Duration
}

// Error implements error for LockoutError.
func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter)
}

// Is allows errors.Is(err, ErrAccountLocked) to match a LockoutError.
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryAfterSeconds returns the countdown rounded up to whole seconds.
func (e *LockoutError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// CooldownError reports that a password was changed too recently to change again.
type CooldownError struct {
	Remaining time.Duration
}

// Error implements error for CooldownError.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("password changed too recently, retry in %d hour(s)", e.RemainingHours())
}

// RemainingHours returns the remaining cooldown in whole hours, never below one.
func (e *CooldownError) RemainingHours() int {
	hours := int(e.Remaining / time.Hour)
	if e.Remaining%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}
