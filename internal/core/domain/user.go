package domain

import "time"

// UserRole enumerates coarse account roles.
type UserRole string

const (
	// RoleUser is the default role assigned on registration.
	RoleUser UserRole = "user"
	// RoleAdmin marks administrative accounts.
	RoleAdmin UserRole = "admin"
)

// User represents a registered account.
type User struct {
	ID                string
	Login             string
	Email             string
	PasswordHash      string
	Role              UserRole
	IsVerified        bool
	CreatedAt         time.Time
	PasswordChangedAt time.Time
}

// Sanitized returns a copy of the user safe to hand to transport layers.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
