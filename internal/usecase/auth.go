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

// AuthService runs the two-step login flow: credential check plus code
// challenge, then bearer token issuance on verification.
type AuthService struct {
	users      port.UserRepository
	challenges port.ChallengeStore
	mailer     port.Mailer
	events     port.EventPublisher
	issuer     *security.TokenIssuer
	log        *zap.Logger

	challengeTTL time.Duration
	codeLength   int
	now          func() time.Time
}

// NewAuthService constructs an auth service.
func NewAuthService(users port.UserRepository, challenges port.ChallengeStore, mailer port.Mailer, events port.EventPublisher, issuer *security.TokenIssuer, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:        users,
		challenges:   challenges,
		mailer:       mailer,
		events:       events,
		issuer:       issuer,
		log:          log,
		challengeTTL: defaultChallengeTTL,
		codeLength:   defaultCodeLength,
		now:          time.Now,
	}
}

// WithChallengeTTL overrides the challenge lifetime.
func (s *AuthService) WithChallengeTTL(ttl time.Duration) {
	if ttl > 0 {
		s.challengeTTL = ttl
	}
}

// WithCodeLength overrides the confirmation code length.
func (s *AuthService) WithCodeLength(length int) {
	if length > 0 {
		s.codeLength = length
	}
}

// WithClock overrides the time source for testing.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// AuthorizationStart is returned after step one of the login flow.
type AuthorizationStart struct {
	ChallengeKey string
	ExpiresAt    time.Time
}

// AuthResult carries the issued bearer token after the code is verified.
type AuthResult struct {
	User      domain.User
	Token     string
	ExpiresAt time.Time
}

// Authorize checks the credentials and, when they match, stores a login
// challenge and mails a sign-in code. The identifier may be a login or an
// email address. The password is never kept in the challenge record.
func (s *AuthService) Authorize(ctx context.Context, identifier, password string) (AuthorizationStart, error) {
	var zero AuthorizationStart

	user, err := resolveUser(ctx, s.users, identifier)
	if err != nil {
		// One generic failure regardless of which part was wrong.
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrEmailInvalid) {
			return zero, ErrInvalidCredentials
		}
		return zero, fmt.Errorf("find user: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return zero, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.log.Info("authorization rejected", zap.String("login", user.Login))
		return zero, ErrInvalidCredentials
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
		Flow:      domain.FlowLogin,
		State:     domain.ChallengeAwaitingCode,
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
	if err := s.mailer.Send(ctx, user.Email, mail.TemplateLoginCode, vars); err != nil {
		s.log.Warn("login code mail failed",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
		if delErr := s.challenges.Delete(ctx, key); delErr != nil {
			s.log.Warn("cleanup after mail failure", zap.Error(delErr))
		}
		return zero, fmt.Errorf("%w: %v", ErrMailDelivery, err)
	}

	s.log.Info("login challenge issued",
		zap.String("login", user.Login),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	return AuthorizationStart{ChallengeKey: key, ExpiresAt: challenge.ExpiresAt}, nil
}

// Verify consumes the login challenge when the code matches and issues a
// bearer token for the account.
func (s *AuthService) Verify(ctx context.Context, key, code string) (AuthResult, error) {
	var zero AuthResult

	challenge, err := s.challenges.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, ErrCodeInvalid
		}
		return zero, fmt.Errorf("load challenge: %w", err)
	}
	if challenge.Flow != domain.FlowLogin || challenge.State != domain.ChallengeAwaitingCode {
		return zero, ErrInvalidState
	}
	if !security.CompareCodes(code, challenge.Code) {
		return zero, ErrCodeInvalid
	}

	consumed, err := s.challenges.ConsumeIfCodeMatches(ctx, key, code)
	if err != nil {
		return zero, fmt.Errorf("consume challenge: %w", err)
	}
	if !consumed {
		return zero, ErrCodeInvalid
	}

	user, err := s.users.FindByLogin(ctx, challenge.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return zero, ErrUserNotFound
		}
		return zero, fmt.Errorf("find user: %w", err)
	}

	token, expiresAt, err := s.issuer.Issue(user.ID, user.Login, string(user.Role))
	if err != nil {
		return zero, fmt.Errorf("issue token: %w", err)
	}

	if s.events != nil {
		event := domain.UserAuthorizedEvent{
			EventID:      uuid.NewString(),
			UserID:       user.ID,
			Login:        user.Login,
			AuthorizedAt: s.now().UTC(),
		}
		if err := s.events.PublishUserAuthorized(ctx, event); err != nil {
			s.log.Warn("publish user authorized", zap.Error(err))
		}
	}

	s.log.Info("authorization verified",
		zap.String("user_id", user.ID),
		zap.String("login", user.Login),
	)
	return AuthResult{User: user.Sanitized(), Token: token, ExpiresAt: expiresAt}, nil
}
