package domain

import "time"

// ChallengeState tracks progress of a one-time-code flow.
type ChallengeState string

const (
	// ChallengeAwaitingCode means a code was issued and confirmation is pending.
	ChallengeAwaitingCode ChallengeState = "awaiting_code"
	// ChallengeMailSent is the initial recovery state before the code is confirmed.
	ChallengeMailSent ChallengeState = "mail_sent"
	// ChallengeCodeConfirmed means the recovery code was accepted and a new
	// password may be set.
	ChallengeCodeConfirmed ChallengeState = "code_confirmed"
)

// ChallengeFlow names the flow a challenge belongs to.
type ChallengeFlow string

const (
	FlowRegistration ChallengeFlow = "registration"
	FlowLogin        ChallengeFlow = "login"
	FlowRecovery     ChallengeFlow = "recovery"
)

// Challenge is the transient record backing a multi-step verification flow.
// It is addressed by a server-issued opaque key and lives only for the
// configured challenge window.
type Challenge struct {
	Flow  ChallengeFlow
	State ChallengeState
	Code  string

	// Payload. Registration carries the pending account fields; login and
	// recovery reference an existing user. The password is stored only as an
	// argon2id hash, never in clear text.
	Login        string
	Email        string
	PasswordHash string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge window has elapsed at the given time.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
