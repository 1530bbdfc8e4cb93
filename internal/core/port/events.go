package port

import (
	"context"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishOriginBlacklisted(ctx context.Context, event domain.OriginBlacklistedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetGranted(ctx context.Context, event domain.PasswordResetGrantedEvent) error
}
