package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// bcrypt ignores everything past this many bytes; longer secrets are
// truncated explicitly so GenerateFromPassword does not reject them.
const bcryptInputLimit = 72

// Hasher wraps bcrypt with a fixed cost and a precomputed decoy hash used to
// equalize timing on lookups that miss.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher builds a Hasher with the given bcrypt cost. The decoy hash is
// computed once up front so VerifyDummy performs a full-cost comparison.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("decoy-credential-value"), cost)
	if err != nil {
		return nil, fmt.Errorf("precompute decoy hash: %w", err)
	}

	return &Hasher{cost: cost, dummyHash: dummy}, nil
}

// Hash generates a bcrypt hash for the provided secret.
func (h *Hasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncate([]byte(secret)), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify compares the secret against a stored bcrypt hash. A mismatch is not
// an error; only malformed hashes produce one.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), truncate([]byte(secret)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare hash: %w", err)
}

// VerifyDummy burns the same bcrypt work as a real comparison without any
// account state. Callers use it when the looked-up record does not exist so
// response timing does not reveal which usernames are registered.
func (h *Hasher) VerifyDummy(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, truncate([]byte(secret)))
}

func truncate(secret []byte) []byte {
	if len(secret) > bcryptInputLimit {
		return secret[:bcryptInputLimit]
	}
	return secret
}
