package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/infra/mail"
	"github.com/arklim/social-platform-passport/internal/infra/security"
)

func newAuthFixture(t *testing.T) (*AuthService, *mockUserRepository, *memChallengeStore, *mockMailer, *mockPublisher) {
	t.Helper()

	users := newMockUserRepository()
	challenges := newMemChallengeStore()
	mailer := &mockMailer{}
	events := &mockPublisher{}

	issuer, err := security.NewTokenIssuer("test-signing-secret", "passport-test", 15*time.Minute)
	if err != nil {
		t.Fatalf("init token issuer: %v", err)
	}

	svc := NewAuthService(users, challenges, mailer, events, issuer, nil)
	return svc, users, challenges, mailer, events
}

func seedUser(t *testing.T, users *mockUserRepository, login, email, password string) domain.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{
		ID:           "4c8f7d1e-0000-0000-0000-000000000001",
		Login:        login,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsVerified:   true,
	}
	users.add(user)
	return user
}

func TestAuthorizeIssuesChallenge(t *testing.T) {
	svc, users, challenges, mailer, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	start, err := svc.Authorize(context.Background(), validLogin, strongPassword)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if start.ChallengeKey == "" {
		t.Fatal("expected a challenge key")
	}

	sent, ok := mailer.lastSent()
	if !ok {
		t.Fatal("expected a sign-in code email")
	}
	if sent.Template != mail.TemplateLoginCode {
		t.Fatalf("unexpected template %q", sent.Template)
	}

	stored, err := challenges.Get(context.Background(), start.ChallengeKey)
	if err != nil {
		t.Fatalf("challenge lookup failed: %v", err)
	}
	if stored.Flow != domain.FlowLogin {
		t.Fatalf("unexpected flow %q", stored.Flow)
	}
	if stored.PasswordHash != "" {
		t.Fatal("login challenge must not carry the password hash")
	}
}

func TestAuthorizeRejectsWrongPassword(t *testing.T) {
	svc, users, _, mailer, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	_, err := svc.Authorize(context.Background(), validLogin, "WrongPass1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, ok := mailer.lastSent(); ok {
		t.Fatal("no email should be sent for bad credentials")
	}
}

func TestAuthorizeAcceptsEmailIdentifier(t *testing.T) {
	svc, users, _, mailer, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	start, err := svc.Authorize(context.Background(), "Alice@Example.com", strongPassword)
	if err != nil {
		t.Fatalf("Authorize by email returned error: %v", err)
	}
	if start.ChallengeKey == "" {
		t.Fatal("expected a challenge key")
	}
	sent, ok := mailer.lastSent()
	if !ok || sent.To != "alice@example.com" {
		t.Fatalf("code should go to the account address, got %+v", sent)
	}
}

func TestAuthorizeRejectsMalformedEmailIdentifier(t *testing.T) {
	svc, users, _, _, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	_, err := svc.Authorize(context.Background(), "alice@@example", strongPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthorizeRejectsUnknownLogin(t *testing.T) {
	svc, _, _, _, _ := newAuthFixture(t)

	_, err := svc.Authorize(context.Background(), "NoSuchUser1", strongPassword)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyIssuesBearerToken(t *testing.T) {
	svc, users, _, mailer, events := newAuthFixture(t)
	seeded := seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	start, err := svc.Authorize(context.Background(), validLogin, strongPassword)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	sent, _ := mailer.lastSent()

	result, err := svc.Verify(context.Background(), start.ChallengeKey, sent.Vars["code"])
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a bearer token")
	}
	if result.User.ID != seeded.ID {
		t.Fatalf("token issued for user %q", result.User.ID)
	}
	if result.User.PasswordHash != "" {
		t.Fatal("password hash leaked to caller")
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Fatal("token expiry should be in the future")
	}
	if len(events.authorized) != 1 {
		t.Fatalf("expected 1 authorized event, got %d", len(events.authorized))
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	svc, users, challenges, _, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	start, err := svc.Authorize(context.Background(), validLogin, strongPassword)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}

	if _, err := svc.Verify(context.Background(), start.ChallengeKey, "WRONG0"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}

	// A wrong code does not consume the challenge.
	if ok, _ := challenges.Exists(context.Background(), start.ChallengeKey); !ok {
		t.Fatal("challenge should survive a wrong code")
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	svc, users, _, mailer, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	start, err := svc.Authorize(context.Background(), validLogin, strongPassword)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	sent, _ := mailer.lastSent()

	if _, err := svc.Verify(context.Background(), start.ChallengeKey, sent.Vars["code"]); err != nil {
		t.Fatalf("first Verify failed: %v", err)
	}
	if _, err := svc.Verify(context.Background(), start.ChallengeKey, sent.Vars["code"]); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("second Verify should fail with ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyRejectsRegistrationChallengeKey(t *testing.T) {
	svc, users, challenges, _, _ := newAuthFixture(t)
	seedUser(t, users, validLogin, "alice@example.com", strongPassword)

	now := time.Now().UTC()
	challenge := domain.Challenge{
		Flow:      domain.FlowRegistration,
		State:     domain.ChallengeAwaitingCode,
		Code:      "ABC123",
		Login:     validLogin,
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
	if err := challenges.Put(context.Background(), "cross-flow-key", challenge, 5*time.Minute); err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	if _, err := svc.Verify(context.Background(), "cross-flow-key", "ABC123"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a foreign flow, got %v", err)
	}
}
