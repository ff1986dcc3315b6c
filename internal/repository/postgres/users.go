package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/repository"
)

const usersTable = "passport.users"

var userColumns = []string{
	"id",
	"login",
	"email",
	"password_hash",
	"role",
	"is_verified",
	"created_at",
	"password_changed_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. A login or email uniqueness violation is
// reported as repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Login,
			user.Email,
			user.PasswordHash,
			user.Role,
			user.IsVerified,
			user.CreatedAt,
			user.PasswordChangedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByLogin retrieves a user by its unique login.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.findBy(ctx, squirrel.Eq{"login": login})
}

// FindByEmail retrieves a user by its unique email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findBy(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) findBy(ctx context.Context, predicate squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(predicate).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsVerified,
		&user.CreatedAt,
		&user.PasswordChangedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

// UpdatePassword replaces the password hash for the account with the given email.
func (r *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetVerified flips the verification flag for the account matching the
// identifier (login or email).
func (r *UserRepository) SetVerified(ctx context.Context, identifier string, verified bool) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("is_verified", verified).
		Where(squirrel.Or{
			squirrel.Eq{"login": identifier},
			squirrel.Eq{"email": identifier},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update verified sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update verified flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
