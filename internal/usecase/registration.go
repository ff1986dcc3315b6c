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

const (
	defaultChallengeTTL = 5 * time.Minute
	defaultCodeLength   = 6
	challengeKeyBytes   = 32
)

// RegistrationService runs the two-step registration flow: a code challenge
// followed by account creation on confirmation.
type RegistrationService struct {
	users             port.UserRepository
	challenges        port.ChallengeStore
	mailer            port.Mailer
	events            port.EventPublisher
	log               *zap.Logger
	passwordValidator *security.Validator
	loginValidator    *security.Validator

	challengeTTL        time.Duration
	codeLength          int
	passwordMinStrength int
	now                 func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(users port.UserRepository, challenges port.ChallengeStore, mailer port.Mailer, events port.EventPublisher, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:             users,
		challenges:        challenges,
		mailer:            mailer,
		events:            events,
		log:               log,
		passwordValidator: security.DefaultPasswordValidator(),
		loginValidator:    security.DefaultLoginValidator(),
		challengeTTL:      defaultChallengeTTL,
		codeLength:        defaultCodeLength,
		now:               time.Now,
	}
}

// WithChallengeTTL overrides the challenge lifetime.
func (s *RegistrationService) WithChallengeTTL(ttl time.Duration) {
	if ttl > 0 {
		s.challengeTTL = ttl
	}
}

// WithCodeLength overrides the confirmation code length.
func (s *RegistrationService) WithCodeLength(length int) {
	if length > 0 {
		s.codeLength = length
	}
}

// WithPasswordMinStrength enables the zxcvbn strength check on new passwords.
// Zero keeps it off.
func (s *RegistrationService) WithPasswordMinStrength(score int) {
	if score > 0 {
		s.passwordMinStrength = score
	}
}

// WithClock overrides the time source for testing.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegistrationStart is returned to the client after step one: the opaque key
// addressing the pending challenge and when it stops being usable.
type RegistrationStart struct {
	ChallengeKey string
	ExpiresAt    time.Time
}

// Register validates the requested account, stores a pending challenge and
// mails the confirmation code. No account row is created yet.
func (s *RegistrationService) Register(ctx context.Context, login, email, password, passwordRepeat string) (RegistrationStart, error) {
	var zero RegistrationStart

	email, err := normalizeEmail(email)
	if err != nil {
		return zero, err
	}
	if password != passwordRepeat {
		return zero, ErrPasswordMismatch
	}
	if err := s.loginValidator.Validate(login); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrLoginPolicyViolation, err)
	}
	if err := s.passwordValidator.Validate(password); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}
	// The login and email count as user inputs so a password derived from
	// them scores low.
	if err := security.RequireStrengthRule(s.passwordMinStrength, login, email).Validate(password); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if err := s.ensureUnoccupied(ctx, login, email); err != nil {
		return zero, err
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return zero, fmt.Errorf("hash password: %w", err)
	}
	code, err := security.GenerateCode(s.codeLength)
	if err != nil {
		return zero, fmt.Errorf("generate code: %w", err)
	}
	key, err := security.GenerateSecureToken(challengeKeyBytes)
	if err != nil {
		return zero, fmt.Errorf("generate challenge key: %w", err)
	}

	now := s.now().UTC()
	challenge := domain.Challenge{
		Flow:         domain.FlowRegistration,
		State:        domain.ChallengeAwaitingCode,
		Code:         code,
		Login:        login,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.challengeTTL),
	}
	if err := s.challenges.Put(ctx, key, challenge, s.challengeTTL); err != nil {
		return zero, fmt.Errorf("store challenge: %w", err)
	}

	vars := map[string]string{"code": code, "ttl": s.challengeTTL.String()}
	if err := s.mailer.Send(ctx, email, mail.TemplateRegistrationCode, vars); err != nil {
		s.log.Warn("registration code mail failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		if delErr := s.challenges.Delete(ctx, key); delErr != nil {
			s.log.Warn("cleanup after mail failure", zap.Error(delErr))
		}
		return zero, fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	s.log.Info("registration challenge issued",
		zap.String("login", login),
		zap.String("email", logger.MaskEmail(email)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	return RegistrationStart{ChallengeKey: key, ExpiresAt: challenge.ExpiresAt}, nil
}

// Confirm consumes the challenge when the code matches and creates the
// account. The challenge is deleted atomically with the code check, so a
// second confirm with the same key fails.
func (s *RegistrationService) Confirm(ctx context.Context, key, code string) (domain.User, error) {
	challenge, err := s.challenges.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrCodeInvalid
		}
		return domain.User{}, fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Flow != domain.FlowRegistration {
		return domain.User{}, ErrInvalidState
	}
	if challenge.State != domain.ChallengeAwaitingCode {
		return domain.User{}, ErrInvalidState
	}
	if !security.CompareCodes(code, challenge.Code) {
		return domain.User{}, ErrCodeInvalid
	}

	consumed, err := s.challenges.ConsumeIfCodeMatches(ctx, key, code)
	if err != nil {
		return domain.User{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !consumed {
		return domain.User{}, ErrCodeInvalid
	}

	now := s.now().UTC()
	user := domain.User{
		ID:                uuid.NewString(),
		Login:             challenge.Login,
		Email:             challenge.Email,
		PasswordHash:      challenge.PasswordHash,
		Role:              domain.RoleUser,
		IsVerified:        true,
		CreatedAt:         now,
		PasswordChangedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Login:        user.Login,
			Email:        user.Email,
			RegisteredAt: now,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.log.Warn("publish user registered", zap.Error(err))
		}
	}

	s.log.Info("registration confirmed",
		zap.String("user_id", user.ID),
		zap.String("login", user.Login),
	)
	return user.Sanitized(), nil
}

func (s *RegistrationService) ensureUnoccupied(ctx context.Context, login, email string) error {
	if _, err := s.users.FindByLogin(ctx, login); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check login: %w", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}
