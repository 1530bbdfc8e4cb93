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
	defaultGrantPrefix = "auth"

	grantKindRegistration = "grant:reg"
	grantKindReset        = "grant:reset"

	fieldUsername     = "username"
	fieldPasswordHash = "password_hash"
	fieldRole         = "role"
	fieldAccountID    = "account_id"
	fieldRemember     = "remember"
	fieldCreatedAt    = "created_at"
	fieldExpiresAt    = "expires_at"
)

// GrantRepository persists single-use registration and reset grants in Redis.
// Records live in TTL'd hashes; the synchronous pipeline Exec makes the grant
// durable before the grant ID is handed to the caller. Every fetch checks the
// stored deadline against the repository clock, so a grant the store has not
// evicted yet still reads as gone once it expires.
type GrantRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewGrantRepository constructs a grant repository with the provided Redis client and key prefix.
func NewGrantRepository(client *red.Client, keyPrefix string) *GrantRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultGrantPrefix
	}

	return &GrantRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (r *GrantRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// StorePendingRegistration persists the validated first registration stage.
func (r *GrantRepository) StorePendingRegistration(ctx context.Context, pending domain.PendingRegistration, ttl time.Duration) error {
	if pending.ID == "" {
		return errors.New("pending registration id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	createdAt := pending.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	expiresAt := pending.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(ttl)
	}

	key := r.key(grantKindRegistration, pending.ID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldUsername:     pending.Username,
		fieldPasswordHash: pending.PasswordHash,
		fieldRole:         string(pending.Role),
		fieldRemember:     strconv.FormatBool(pending.Remember),
		fieldCreatedAt:    strconv.FormatInt(createdAt.Unix(), 10),
		fieldExpiresAt:    strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store pending registration: %w", err)
	}

	return nil
}

// FetchPendingRegistration retrieves a pending registration by grant ID.
func (r *GrantRepository) FetchPendingRegistration(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	key := r.key(grantKindRegistration, id)

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall pending registration: %w", err)
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

	pending := &domain.PendingRegistration{
		ID:           id,
		Username:     values[fieldUsername],
		PasswordHash: values[fieldPasswordHash],
		Role:         domain.Role(values[fieldRole]),
		Remember:     values[fieldRemember] == "true",
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
	}
	if pending.Expired(r.now().UTC()) {
		return nil, repository.ErrNotFound
	}

	return pending, nil
}

// DeletePendingRegistration removes the grant, enforcing single-use semantics.
func (r *GrantRepository) DeletePendingRegistration(ctx context.Context, id string) error {
	return r.deleteGrant(ctx, r.key(grantKindRegistration, id))
}

// StoreResetGrant persists a reset grant issued after a correct recovery answer.
func (r *GrantRepository) StoreResetGrant(ctx context.Context, grant domain.ResetGrant, ttl time.Duration) error {
	if grant.ID == "" {
		return errors.New("reset grant id is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	createdAt := grant.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	expiresAt := grant.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = createdAt.Add(ttl)
	}

	key := r.key(grantKindReset, grant.ID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldAccountID: grant.AccountID,
		fieldUsername:  grant.Username,
		fieldCreatedAt: strconv.FormatInt(createdAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store reset grant: %w", err)
	}

	return nil
}

// FetchResetGrant retrieves a reset grant by grant ID.
func (r *GrantRepository) FetchResetGrant(ctx context.Context, id string) (*domain.ResetGrant, error) {
	key := r.key(grantKindReset, id)

	values, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall reset grant: %w", err)
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

	grant := &domain.ResetGrant{
		ID:        id,
		AccountID: values[fieldAccountID],
		Username:  values[fieldUsername],
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	if grant.Expired(r.now().UTC()) {
		return nil, repository.ErrNotFound
	}

	return grant, nil
}

// DeleteResetGrant removes the grant, enforcing single-use semantics.
func (r *GrantRepository) DeleteResetGrant(ctx context.Context, id string) error {
	return r.deleteGrant(ctx, r.key(grantKindReset, id))
}

func (r *GrantRepository) deleteGrant(ctx context.Context, key string) error {
	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis delete grant: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *GrantRepository) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, id)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.GrantStore = (*GrantRepository)(nil)
