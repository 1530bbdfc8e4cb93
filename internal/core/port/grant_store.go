package port

import (
	"context"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// GrantStore persists short-lived single-use grants issued between the two
// stages of registration and recovery. Implementations must make a stored
// grant durable before returning so an issued grant ID is always redeemable
// within its TTL.
type GrantStore interface {
	StorePendingRegistration(ctx context.Context, pending domain.PendingRegistration, ttl time.Duration) error
	FetchPendingRegistration(ctx context.Context, id string) (*domain.PendingRegistration, error)
	DeletePendingRegistration(ctx context.Context, id string) error

	StoreResetGrant(ctx context.Context, grant domain.ResetGrant, ttl time.Duration) error
	FetchResetGrant(ctx context.Context, id string) (*domain.ResetGrant, error)
	DeleteResetGrant(ctx context.Context, id string) error
}
