package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// pgExecutor abstracts the pgx pool and transactions for repositories.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles all PostgreSQL-backed repositories.
type Repositories struct {
	Users *UserRepository
}

// NewRepositories wires repositories over a shared connection pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users: NewUserRepository(pool),
	}
}
