package domain

import (
	"strings"
	"time"
)

// RecoveryQuestions is the fixed set of questions an account owner chooses
// from during registration. Free-form questions are not accepted.
var RecoveryQuestions = []string{
	"What is the name of a childhood friend that no one else would know?",
	"What is your favorite fictional location from a book or movie?",
	"What is/was the name of your first pet?",
}

// KnownRecoveryQuestion reports whether q is one of the supported questions.
func KnownRecoveryQuestion(q string) bool {
	for _, known := range RecoveryQuestions {
		if q == known {
			return true
		}
	}
	return false
}

// NormalizeRecoveryAnswer canonicalizes an answer before hashing or
// comparison so that casing and surrounding whitespace do not matter.
func NormalizeRecoveryAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// PendingRegistration holds the validated first stage of a registration until
// the recovery question stage completes or the grant expires. Remember is
// captured at stage one and carried into the session established at stage two.
type PendingRegistration struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Remember     bool
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the grant's deadline has passed at now. The store's
// own TTL eviction is not relied on.
func (p PendingRegistration) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// ResetGrant authorizes a single password reset after a successful recovery
// answer. It is consumed on first use.
type ResetGrant struct {
	ID        string
	AccountID string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the grant's deadline has passed at now.
func (g ResetGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}
