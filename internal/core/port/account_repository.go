package port

import (
	"context"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	// RecordFailure bumps the embedded failure counter and stamps the attempt
	// time, returning the post-increment count.
	RecordFailure(ctx context.Context, id string, at time.Time) (int, error)
	Lock(ctx context.Context, id string, until time.Time) error
	// ClearFailures zeroes the failure counter and stamps a successful login.
	ClearFailures(ctx context.Context, id string, at time.Time) error
	// RotatePassword swaps in a new hash, appends the old one to history, and
	// trims history to the retention limit in a single transaction.
	RotatePassword(ctx context.Context, id string, newHash string, changedAt time.Time) error
	// ListPasswordHistory returns up to limit retired hashes, newest first.
	ListPasswordHistory(ctx context.Context, id string, limit int) ([]domain.PasswordHistoryEntry, error)
	UpdateRecovery(ctx context.Context, id string, question string, answerHash string) error
}
