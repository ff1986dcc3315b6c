package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-passport/internal/core/domain"
)

// UserRepository persists registered accounts.
//
// Lookups return repository.ErrNotFound when no row matches. Create returns
// repository.ErrConflict on a login or email uniqueness violation; callers may
// pre-check, but the store remains the source of truth.
type UserRepository interface {
	FindByLogin(ctx context.Context, login string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) error
	UpdatePassword(ctx context.Context, email, passwordHash string, changedAt time.Time) error
	SetVerified(ctx context.Context, identifier string, verified bool) error
}
