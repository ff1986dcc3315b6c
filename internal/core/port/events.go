package port

import (
	"context"

	"github.com/arklim/social-platform-passport/internal/core/domain"
)

// EventPublisher fans flow lifecycle events out to downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserAuthorized(ctx context.Context, event domain.UserAuthorizedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
