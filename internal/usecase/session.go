package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/repository"
)

const sessionIDBytes = 32

// SessionService issues, validates, and revokes server-side sessions. The
// browser only ever holds a signed cookie wrapping the opaque session ID.
type SessionService struct {
	store   port.SessionStore
	signer  *security.CookieSigner
	session config.SessionSettings
	now     func() time.Time
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(store port.SessionStore, signer *security.CookieSigner, session config.SessionSettings) *SessionService {
	return &SessionService{
		store:   store,
		signer:  signer,
		session: session,
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Establish creates a session for the account and returns it along with the
// signed cookie value. Remember stretches the lifetime from the default to
// the remember-me TTL.
func (s *SessionService) Establish(ctx context.Context, account *domain.Account, remember bool, ip, userAgent string) (*domain.Session, string, error) {
	id, err := security.GenerateSecureToken(sessionIDBytes)
	if err != nil {
		return nil, "", fmt.Errorf("generate session id: %w", err)
	}

	ttl := s.session.DefaultTTL
	if remember {
		ttl = s.session.RememberMeTTL
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:        id,
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if ip != "" {
		session.IP = &ip
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}

	if err := s.store.Store(ctx, session, ttl); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	cookie, err := s.signer.Sign(session.ID, session.ExpiresAt)
	if err != nil {
		return nil, "", err
	}

	return &session, cookie, nil
}

// Validate resolves a cookie value to its live session. A cookie that fails
// signature or expiry checks, or whose session no longer exists, comes back
// as invalid; a session past its expiry comes back as expired.
func (s *SessionService) Validate(ctx context.Context, cookieValue string) (*domain.Session, error) {
	if cookieValue == "" {
		return nil, ErrInvalidSession
	}

	id, err := s.signer.Parse(cookieValue)
	if err != nil {
		return nil, ErrInvalidSession
	}

	session, err := s.store.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}

	if !session.IsActive(s.now().UTC()) {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Revoke deletes the session behind the cookie value. Revoking an unknown or
// malformed cookie is a no-op; logout always succeeds.
func (s *SessionService) Revoke(ctx context.Context, cookieValue string) error {
	if cookieValue == "" {
		return nil
	}

	id, err := s.signer.Parse(cookieValue)
	if err != nil {
		return nil
	}

	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}
