package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/arklim/social-platform-passport/internal/core/domain"
	"github.com/arklim/social-platform-passport/internal/core/port"
)

var (
	// ErrUserExists indicates the login or email already belongs to an account.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound indicates no account matches the supplied identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates the login/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordMismatch indicates the two submitted passwords differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordPolicyViolation indicates the password fails complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrLoginPolicyViolation indicates the login fails complexity requirements.
	ErrLoginPolicyViolation = errors.New("login does not meet complexity requirements")
	// ErrEmailInvalid indicates the supplied email address is malformed.
	ErrEmailInvalid = errors.New("email address is invalid")
	// ErrCodeInvalid indicates the confirmation code does not match the pending
	// challenge, or the challenge expired or was already consumed.
	ErrCodeInvalid = errors.New("confirmation code invalid")
	// ErrInvalidState indicates the challenge exists but is not in the state the
	// requested step demands.
	ErrInvalidState = errors.New("challenge is in the wrong state")
	// ErrMailDelivery indicates the code email could not be handed to the relay.
	ErrMailDelivery = errors.New("mail delivery failed")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// normalizeEmail lowercases and trims an address and validates its shape.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", ErrEmailInvalid
	}
	return email, nil
}

// resolveUser finds the account behind a login-or-email identifier. Anything
// containing '@' is treated as an email address, everything else as a login.
func resolveUser(ctx context.Context, users port.UserRepository, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		email, err := normalizeEmail(identifier)
		if err != nil {
			return nil, err
		}
		return users.FindByEmail(ctx, email)
	}
	return users.FindByLogin(ctx, identifier)
}
