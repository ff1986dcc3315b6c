package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/infra/mail"
)

const (
	strongPassword = "Sup3rSecret"
	validLogin     = "Alice99x"
)

func newRegistrationFixture() (*RegistrationService, *mockUserRepository, *memChallengeStore, *mockMailer, *mockPublisher) {
	users := newMockUserRepository()
	challenges := newMemChallengeStore()
	mailer := &mockMailer{}
	events := &mockPublisher{}
	svc := NewRegistrationService(users, challenges, mailer, events, nil)
	return svc, users, challenges, mailer, events
}

func TestRegisterIssuesChallengeAndMailsCode(t *testing.T) {
	svc, _, challenges, mailer, _ := newRegistrationFixture()

	start, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if start.ChallengeKey == "" {
		t.Fatal("expected a challenge key")
	}
	if challenges.len() != 1 {
		t.Fatalf("expected 1 stored challenge, got %d", challenges.len())
	}

	sent, ok := mailer.lastSent()
	if !ok {
		t.Fatal("expected a code email")
	}
	if sent.To != "alice@example.com" {
		t.Fatalf("email sent to %q", sent.To)
	}
	if sent.Template != mail.TemplateRegistrationCode {
		t.Fatalf("unexpected template %q", sent.Template)
	}
	if sent.Vars["code"] == "" {
		t.Fatal("expected the code in template vars")
	}

	stored, err := challenges.Get(context.Background(), start.ChallengeKey)
	if err != nil {
		t.Fatalf("challenge lookup failed: %v", err)
	}
	if stored.State != domain.ChallengeAwaitingCode {
		t.Fatalf("unexpected state %q", stored.State)
	}
	if stored.Code != sent.Vars["code"] {
		t.Fatal("stored code differs from mailed code")
	}
	if stored.PasswordHash == strongPassword {
		t.Fatal("password stored in clear text")
	}
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	svc, _, _, _, _ := newRegistrationFixture()

	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, "Different1x")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestRegisterEnforcesPasswordStrength(t *testing.T) {
	svc, _, _, mailer, _ := newRegistrationFixture()
	svc.WithPasswordMinStrength(3)

	// Structurally valid but trivially guessable.
	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", "Password123", "Password123")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
	if _, ok := mailer.lastSent(); ok {
		t.Fatal("no email should be sent for a weak password")
	}

	if _, err := svc.Register(context.Background(), validLogin, "alice@example.com", "kV9#mQ2$wL8@xR5z", "kV9#mQ2$wL8@xR5z"); err != nil {
		t.Fatalf("high-entropy password should pass, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc, _, _, _, _ := newRegistrationFixture()

	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", "Sh1rt", "Sh1rt")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation for a short password, got %v", err)
	}
	_, err = svc.Register(context.Background(), validLogin, "alice@example.com", "alllowercase1", "alllowercase1")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, _, _, _, _ := newRegistrationFixture()

	_, err := svc.Register(context.Background(), validLogin, "not-an-email", strongPassword, strongPassword)
	if !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("expected ErrEmailInvalid, got %v", err)
	}
}

func TestRegisterRejectsTakenLogin(t *testing.T) {
	svc, users, _, _, _ := newRegistrationFixture()
	users.add(domain.User{ID: "u1", Login: validLogin, Email: "other@example.com"})

	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	svc, users, _, _, _ := newRegistrationFixture()
	users.add(domain.User{ID: "u1", Login: "SomeoneElse1", Email: "alice@example.com"})

	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterMailFailureDiscardsChallenge(t *testing.T) {
	svc, _, challenges, mailer, _ := newRegistrationFixture()
	mailer.sendErr = errors.New("relay refused")

	_, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if !errors.Is(err, ErrMailDelivery) {
		t.Fatalf("expected ErrMailDelivery, got %v", err)
	}
	if challenges.len() != 0 {
		t.Fatalf("challenge should be discarded after mail failure, %d left", challenges.len())
	}
}

func TestConfirmCreatesAccount(t *testing.T) {
	svc, users, _, mailer, events := newRegistrationFixture()

	start, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	sent, _ := mailer.lastSent()

	user, err := svc.Confirm(context.Background(), start.ChallengeKey, sent.Vars["code"])
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if user.Login != validLogin {
		t.Fatalf("unexpected login %q", user.Login)
	}
	if !user.IsVerified {
		t.Fatal("confirmed account should be verified")
	}
	if user.PasswordHash != "" {
		t.Fatal("password hash leaked to caller")
	}

	persisted, err := users.FindByLogin(context.Background(), validLogin)
	if err != nil {
		t.Fatalf("account not persisted: %v", err)
	}
	if persisted.PasswordHash == "" {
		t.Fatal("persisted account is missing the password hash")
	}

	if len(events.registered) != 1 {
		t.Fatalf("expected 1 registered event, got %d", len(events.registered))
	}
	if events.registered[0].Login != validLogin {
		t.Fatalf("event carries login %q", events.registered[0].Login)
	}
}

func TestConfirmRejectsWrongCode(t *testing.T) {
	svc, users, _, _, _ := newRegistrationFixture()

	start, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if _, err := svc.Confirm(context.Background(), start.ChallengeKey, "WRONG0"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
	if users.createCalls != 0 {
		t.Fatal("no account should be created on a wrong code")
	}
}

func TestConfirmIsSingleUse(t *testing.T) {
	svc, _, _, mailer, _ := newRegistrationFixture()

	start, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	sent, _ := mailer.lastSent()

	if _, err := svc.Confirm(context.Background(), start.ChallengeKey, sent.Vars["code"]); err != nil {
		t.Fatalf("first Confirm failed: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), start.ChallengeKey, sent.Vars["code"]); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("second Confirm should fail with ErrCodeInvalid, got %v", err)
	}
}

func TestConfirmRejectsExpiredChallenge(t *testing.T) {
	svc, _, challenges, mailer, _ := newRegistrationFixture()

	base := time.Now()
	svc.WithClock(func() time.Time { return base })
	challenges.now = func() time.Time { return base }

	start, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	sent, _ := mailer.lastSent()

	late := base.Add(6 * time.Minute)
	svc.WithClock(func() time.Time { return late })
	challenges.now = func() time.Time { return late }

	if _, err := svc.Confirm(context.Background(), start.ChallengeKey, sent.Vars["code"]); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for expired challenge, got %v", err)
	}
}

func TestRegisterOverwritesPreviousChallengeKey(t *testing.T) {
	svc, users, _, mailer, _ := newRegistrationFixture()

	first, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	firstMail, _ := mailer.lastSent()

	second, err := svc.Register(context.Background(), validLogin, "alice@example.com", strongPassword, strongPassword)
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	secondMail, _ := mailer.lastSent()

	if first.ChallengeKey == second.ChallengeKey {
		t.Fatal("each flow start should issue a fresh key")
	}

	// Both pending challenges are independently confirmable until one wins.
	if _, err := svc.Confirm(context.Background(), second.ChallengeKey, secondMail.Vars["code"]); err != nil {
		t.Fatalf("Confirm on the latest challenge failed: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), first.ChallengeKey, firstMail.Vars["code"]); !errors.Is(err, ErrUserExists) {
		t.Fatalf("stale challenge should hit the uniqueness check, got %v", err)
	}
	if _, err := users.FindByLogin(context.Background(), validLogin); err != nil {
		t.Fatalf("account missing after confirmation: %v", err)
	}
}
