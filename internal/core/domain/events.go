package domain

import "time"

// UserRegisteredEvent is published after a registration challenge is confirmed
// and the account is persisted.
type UserRegisteredEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Login        string    `json:"login"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

// UserAuthorizedEvent is published after a login challenge is verified and a
// bearer token was issued.
type UserAuthorizedEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Login        string    `json:"login"`
	AuthorizedAt time.Time `json:"authorized_at"`
}

// PasswordChangedEvent is published when a recovery flow replaces a password.
type PasswordChangedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ChangedAt time.Time `json:"changed_at"`
}
