package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/repository"
)

const (
	sessionKind = "session"

	fieldIP        = "ip"
	fieldUserAgent = "user_agent"
)

// SessionRepository persists authenticated sessions in TTL'd Redis hashes.
// Redis expiry handles the ttl; the expires_at field is stored as well so a
// fetched session can be revalidated against the clock.
type SessionRepository struct {
	client *red.Client
	prefix string
}

// NewSessionRepository constructs a session repository with the provided Redis client and key prefix.
func NewSessionRepository(client *red.Client, keyPrefix string) *SessionRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultGrantPrefix
	}

	return &SessionRepository{client: client, prefix: prefix}
}

// Store persists the session under its ID for the supplied TTL.
func (r *SessionRepository) Store(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	fields := map[string]any{
		fieldAccountID: session.AccountID,
		fieldUsername:  session.Username,
		fieldRole:      string(session.Role),
		fieldRemember:  strconv.FormatBool(session.Remember),
		fieldCreatedAt: strconv.FormatInt(session.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(session.ExpiresAt.Unix(), 10),
	}
	if session.IP != nil {
		fields[fieldIP] = *session.IP
	}
	if session.UserAgent != nil {
		fields[fieldUserAgent] = *session.UserAgent
	}

	key := r.key(session.ID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store session: %w", err)
	}

	return nil
}

// Fetch retrieves the session for the provided ID.
func (r *SessionRepository) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	values, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall session: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	session := domain.Session{
		ID:        id,
		AccountID: values[fieldAccountID],
		Username:  values[fieldUsername],
		Role:      domain.Role(values[fieldRole]),
		Remember:  values[fieldRemember] == "true",
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	if ip, ok := values[fieldIP]; ok && ip != "" {
		session.IP = &ip
	}
	if ua, ok := values[fieldUserAgent]; ok && ua != "" {
		session.UserAgent = &ua
	}

	return &session, nil
}

// Delete removes the session. Deleting an absent session is not an error so
// logout stays idempotent.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Del(ctx, r.key(id)).Result(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, sessionKind, id)
}

var _ port.SessionStore = (*SessionRepository)(nil)
