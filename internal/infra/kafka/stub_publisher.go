package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without brokers.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(eventUserRegistered, event.UserID, event.RegisteredAt, event)
	return nil
}

// PublishUserAuthorized logs user.authorized events.
func (p *StubPublisher) PublishUserAuthorized(_ context.Context, event domain.UserAuthorizedEvent) error {
	p.logEvent(eventUserAuthorized, event.UserID, event.AuthorizedAt, event)
	return nil
}

// PublishPasswordChanged logs user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(eventPasswordChanged, event.UserID, event.ChangedAt, event)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
