package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts        *AccountRepository
	AccountAttempts *AccountAttemptRepository
	OriginAttempts  *OriginAttemptRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Accounts:        NewAccountRepository(pool),
		AccountAttempts: NewAccountAttemptRepository(pool),
		OriginAttempts:  NewOriginAttemptRepository(pool),
	}
}
