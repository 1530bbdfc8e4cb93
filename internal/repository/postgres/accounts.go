package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/core/port"
	"github.com/mealmap/platform-auth/internal/repository"
)

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var accountColumns = []string{
	"id",
	"username",
	"password_hash",
	"role",
	"recovery_question",
	"recovery_answer_hash",
	"failed_login_attempts",
	"lock_until",
	"last_login_attempt",
	"last_successful_login",
	"last_password_change",
	"created_at",
}

// Create inserts a new account row. A username collision maps to
// repository.ErrDuplicate so callers can arbitrate registration races.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert("auth.accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Username,
			account.PasswordHash,
			account.Role,
			account.RecoveryQuestion,
			account.RecoveryAnswerHash,
			account.FailedLoginAttempts,
			account.LockUntil,
			account.LastLoginAttempt,
			account.LastSuccessfulLogin,
			account.LastPasswordChange,
			account.CreatedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("auth.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByUsername retrieves an account by its exact username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("auth.accounts").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account by username sql: %w", err)
	}

	return r.scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account

	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Role,
		&account.RecoveryQuestion,
		&account.RecoveryAnswerHash,
		&account.FailedLoginAttempts,
		&account.LockUntil,
		&account.LastLoginAttempt,
		&account.LastSuccessfulLogin,
		&account.LastPasswordChange,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}

// RecordFailure bumps the embedded failure counter and stamps the attempt
// time, returning the post-increment count.
func (r *AccountRepository) RecordFailure(ctx context.Context, id string, at time.Time) (int, error) {
	const stmt = `
		UPDATE auth.accounts
		   SET failed_login_attempts = failed_login_attempts + 1,
		       last_login_attempt = $2
		 WHERE id = $1
		RETURNING failed_login_attempts`

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, id, at).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("record login failure: %w", err)
	}

	return attempts, nil
}

// Lock sets the account lock deadline and resets the embedded counter.
func (r *AccountRepository) Lock(ctx context.Context, id string, until time.Time) error {
	stmt, args, err := r.builder.Update("auth.accounts").
		Set("lock_until", until).
		Set("failed_login_attempts", 0).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock account sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearFailures zeroes the failure counter, drops any lock, and stamps a
// successful login.
func (r *AccountRepository) ClearFailures(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.accounts").
		Set("failed_login_attempts", 0).
		Set("lock_until", nil).
		Set("last_login_attempt", at).
		Set("last_successful_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear failures sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RotatePassword swaps in the new hash, moves the current one into history,
// and trims history to the retention limit, all inside one transaction.
func (r *AccountRepository) RotatePassword(ctx context.Context, id string, newHash string, changedAt time.Time) error {
	tx, err := r.exec.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate password tx: %w", err)
	}

	rotate := func() error {
		var currentHash string
		if err := tx.QueryRow(ctx,
			`SELECT password_hash FROM auth.accounts WHERE id = $1 FOR UPDATE`, id,
		).Scan(&currentHash); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("select current hash: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE auth.accounts
			    SET password_hash = $2, last_password_change = $3, lock_until = NULL, failed_login_attempts = 0
			  WHERE id = $1`,
			id, newHash, changedAt,
		); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO auth.account_password_history (id, account_id, password_hash, set_at)
			 VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), id, currentHash, changedAt,
		); err != nil {
			return fmt.Errorf("insert password history: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM auth.account_password_history
			  WHERE account_id = $1
			    AND id NOT IN (
			        SELECT id FROM auth.account_password_history
			         WHERE account_id = $1
			         ORDER BY set_at DESC
			         LIMIT $2)`,
			id, domain.PasswordHistoryLimit,
		); err != nil {
			return fmt.Errorf("trim password history: %w", err)
		}

		return nil
	}

	if err := rotate(); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate password tx: %w", err)
	}

	return nil
}

// ListPasswordHistory returns up to limit retired hashes, newest first.
func (r *AccountRepository) ListPasswordHistory(ctx context.Context, id string, limit int) ([]domain.PasswordHistoryEntry, error) {
	query := r.builder.
		Select("id", "account_id", "password_hash", "set_at").
		From("auth.account_password_history").
		Where(squirrel.Eq{"account_id": id}).
		OrderBy("set_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select password history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return entries, nil
}

// UpdateRecovery replaces the recovery question and answer hash.
func (r *AccountRepository) UpdateRecovery(ctx context.Context, id string, question string, answerHash string) error {
	stmt, args, err := r.builder.Update("auth.accounts").
		Set("recovery_question", question).
		Set("recovery_answer_hash", answerHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update recovery sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update recovery: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
