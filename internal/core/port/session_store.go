package port

import (
	"context"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// SessionStore persists authenticated sessions keyed by session ID.
type SessionStore interface {
	Store(ctx context.Context, session domain.Session, ttl time.Duration) error
	Fetch(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}
