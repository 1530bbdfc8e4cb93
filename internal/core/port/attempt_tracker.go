package port

import (
	"context"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// AccountAttemptRepository exposes the per-username failure tracker. The
// tracker exists independently of the accounts table so attempts against
// locked or soon-to-exist usernames still count.
type AccountAttemptRepository interface {
	// Increment upserts the tracker row and bumps its counter atomically,
	// returning the row as it stands after the write.
	Increment(ctx context.Context, username string, at time.Time) (*domain.AccountAttempt, error)
	// Lock sets the lock deadline and resets the counter in the same write so
	// the next failure window starts from zero. Rows already holding an
	// unexpired lock are left untouched.
	Lock(ctx context.Context, username string, until time.Time, at time.Time) error
	Get(ctx context.Context, username string) (*domain.AccountAttempt, error)
	Delete(ctx context.Context, username string) error
	// PurgeStale removes tracker rows not updated since the cutoff and
	// returns how many were dropped.
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// OriginAttemptRepository exposes the per-address failure tracker.
type OriginAttemptRepository interface {
	Increment(ctx context.Context, address string, at time.Time) (*domain.OriginAttempt, error)
	Blacklist(ctx context.Context, address string, until time.Time, at time.Time) error
	Get(ctx context.Context, address string) (*domain.OriginAttempt, error)
	Delete(ctx context.Context, address string) error
}
