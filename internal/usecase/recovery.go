package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/core/port"
	"github.com/arklim/social-platform-passport/internal/infra/logger"
	"github.com/arklim/social-platform-passport/internal/infra/mail"
	"github.com/arklim/social-platform-passport/internal/infra/security"
	"github.com/arklim/social-platform-passport/internal/repository"
)

// RecoveryService runs the three-step password recovery flow: code request,
// code confirmation, then password replacement.
type RecoveryService struct {
	users             port.UserRepository
	challenges        port.ChallengeStore
	mailer            port.Mailer
	events            port.EventPublisher
	log               *zap.Logger
	passwordValidator *security.Validator

	challengeTTL        time.Duration
	codeLength          int
	passwordMinStrength int
	now                 func() time.Time
}

// NewRecoveryService constructs a recovery service.
func NewRecoveryService(users port.UserRepository, challenges port.ChallengeStore, mailer port.Mailer, events port.EventPublisher, log *zap.Logger) *RecoveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecoveryService{
		users:             users,
		challenges:        challenges,
		mailer:            mailer,
		events:            events,
		log:               log,
		passwordValidator: security.DefaultPasswordValidator(),
		challengeTTL:      defaultChallengeTTL,
		codeLength:        defaultCodeLength,
		now:               time.Now,
	}
}

// WithChallengeTTL overrides the challenge lifetime.
func (s *RecoveryService) WithChallengeTTL(ttl time.Duration) {
	if ttl > 0 {
		s.challengeTTL = ttl
	}
}

// WithCodeLength overrides the confirmation code length.
func (s *RecoveryService) WithCodeLength(length int) {
	if length > 0 {
		s.codeLength = length
	}
}

// WithPasswordMinStrength enables the zxcvbn strength check on replacement
// passwords. Zero keeps it off.
func (s *RecoveryService) WithPasswordMinStrength(score int) {
	if score > 0 {
		s.passwordMinStrength = score
	}
}

// WithClock overrides the time source for testing.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RecoveryStart is returned after step one of the recovery flow.
type RecoveryStart struct {
	ChallengeKey string
	ExpiresAt    time.Time
}

// Recover looks the account up by login or email, stores a recovery challenge
// and mails the reset code to the account's address.
func (s *RecoveryService) Recover(ctx context.Context, identifier string) (RecoveryStart, error) {
	var zero RecoveryStart

	user, err := resolveUser(ctx, s.users, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, ErrUserNotFound
		}
		if errors.Is(err, ErrEmailInvalid) {
			return zero, err
		}
		return zero, fmt.Errorf("find user: %w", err)
	}

	// Recovery codes are numeric-only.
	code, err := security.GenerateNumericCode(s.codeLength)
	if err != nil {
		return zero, fmt.Errorf("generate code: %w", err)
	}
	key, err := security.GenerateSecureToken(challengeKeyBytes)
	if err != nil {
		return zero, fmt.Errorf("generate challenge key: %w", err)
	}

	now := s.now().UTC()
	challenge := domain.Challenge{
		Flow:      domain.FlowRecovery,
		State:     domain.ChallengeMailSent,
		Code:      code,
		Login:     user.Login,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL),
	}
	if err := s.challenges.Put(ctx, key, challenge, s.challengeTTL); err != nil {
		return zero, fmt.Errorf("store challenge: %w", err)
	}

	vars := map[string]string{"code": code, "ttl": s.challengeTTL.String()}
	if err := s.mailer.Send(ctx, user.Email, mail.TemplateRecoveryCode, vars); err != nil {
		s.log.Warn("recovery code mail failed",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
		if delErr := s.challenges.Delete(ctx, key); delErr != nil {
			s.log.Warn("cleanup after mail failure", zap.Error(delErr))
		}
		return zero, fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	s.log.Info("recovery challenge issued",
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	return RecoveryStart{ChallengeKey: key, ExpiresAt: challenge.ExpiresAt}, nil
}

// ConfirmResetCode advances the challenge to the code-confirmed state when
// the code matches. The challenge keeps its original expiry, so the password
// must be replaced inside the same window.
func (s *RecoveryService) ConfirmResetCode(ctx context.Context, key, code string) error {
	challenge, err := s.challenges.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Flow != domain.FlowRecovery || challenge.State != domain.ChallengeMailSent {
		return ErrInvalidState
	}
	if !security.CompareCodes(code, challenge.Code) {
		return ErrCodeInvalid
	}

	// The code is single-use: clear it on transition so a replay of this
	// step fails the state check.
	challenge.State = domain.ChallengeCodeConfirmed
	challenge.Code = ""
	if err := s.challenges.Update(ctx, key, *challenge); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("update challenge: %w", err)
	}

	s.log.Info("recovery code confirmed", zap.String("login", challenge.Login))
	return nil
}

// ChangePassword replaces the account password once the reset code was
// confirmed, then discards the challenge.
func (s *RecoveryService) ChangePassword(ctx context.Context, key, password, passwordRepeat string) error {
	if password != passwordRepeat {
		return ErrPasswordMismatch
	}
	if err := s.passwordValidator.Validate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	challenge, err := s.challenges.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Flow != domain.FlowRecovery || challenge.State != domain.ChallengeCodeConfirmed {
		return ErrInvalidState
	}
	// Strength is checked against the account's own login and email, which
	// are only known once the challenge is loaded.
	if err := security.RequireStrengthRule(s.passwordMinStrength, challenge.Login, challenge.Email).Validate(password); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, challenge.Email, passwordHash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.challenges.Delete(ctx, key); err != nil {
		s.log.Warn("discard recovery challenge", zap.Error(err))
	}

	if s.events != nil {
		user, err := s.users.FindByEmail(ctx, challenge.Email)
		if err == nil {
			event := domain.PasswordChangedEvent{
				EventID:   uuid.NewString(),
				UserID:    user.ID,
				Email:     user.Email,
				ChangedAt: now,
			}
			if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
				s.log.Warn("publish password changed", zap.Error(err))
			}
		}
	}

	s.log.Info("password changed",
		zap.String("email", logger.MaskEmail(challenge.Email)),
	)
	return nil
}
