package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, subject string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("subject", subject),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs auth.account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"username":      event.Username,
		"role":          event.Role,
		"registered_at": event.RegisteredAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("auth.account.registered", event.AccountID, event.RegisteredAt, payload)
	return nil
}

// PublishAccountLocked logs auth.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"username":   event.Username,
		"attempts":   event.Attempts,
		"locked_at":  event.LockedAt,
		"lock_until": event.LockUntil,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.account.locked", event.Username, event.LockedAt, payload)
	return nil
}

// PublishOriginBlacklisted logs auth.origin.blacklisted events.
func (p *StubPublisher) PublishOriginBlacklisted(_ context.Context, event domain.OriginBlacklistedEvent) error {
	payload := map[string]any{
		"address":        event.Address,
		"attempts":       event.Attempts,
		"blacklisted_at": event.BlacklistedAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("auth.origin.blacklisted", event.Address, event.BlacklistedAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"changed_at": event.ChangedAt,
		"changed_by": event.ChangedBy,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetGranted logs auth.password.reset_granted events.
func (p *StubPublisher) PublishPasswordResetGranted(_ context.Context, event domain.PasswordResetGrantedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"grant_id":   event.GrantID,
		"granted_at": event.GrantedAt,
		"expires_at": event.ExpiresAt,
		"ip_address": event.IPAddress,
		"metadata":   event.Metadata,
	}
	p.logEvent("auth.password.reset_granted", event.AccountID, event.GrantedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
