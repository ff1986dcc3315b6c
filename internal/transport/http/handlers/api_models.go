package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-passport/internal/core/domain"
)

// ErrorResponse is the generic error payload. The request ID is echoed so a
// failure can be correlated with the access log.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request ID from the
// gin context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Get("request_id")
	requestIDStr, _ := requestID.(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the minimal account view returned by the API.
type UserSummary struct {
	ID         string    `json:"id"`
	Login      string    `json:"login"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:         user.ID,
		Login:      user.Login,
		Email:      user.Email,
		Role:       string(user.Role),
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}

// RegisterRequest starts the registration flow.
type RegisterRequest struct {
	Login          string `json:"login" binding:"required"`
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	PasswordRepeat string `json:"password_repeat" binding:"required"`
}

// ChallengeResponse is returned by every flow-start endpoint: the opaque key
// the client must echo in the next step, and when it expires.
type ChallengeResponse struct {
	ChallengeKey string    `json:"challenge_key"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ConfirmRequest carries the challenge key and the mailed code.
type ConfirmRequest struct {
	ChallengeKey string `json:"challenge_key" binding:"required"`
	Code         string `json:"code" binding:"required"`
}

// RegisterConfirmResponse is returned once the account is created.
type RegisterConfirmResponse struct {
	User UserSummary `json:"user"`
}

// AuthRequest starts the login flow. Login accepts either the account login
// or its email address.
type AuthRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthVerifyResponse carries the bearer token issued after code verification.
type AuthVerifyResponse struct {
	User        UserSummary `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// RecoverRequest starts the password recovery flow. Login accepts either the
// account login or its email address.
type RecoverRequest struct {
	Login string `json:"login" binding:"required"`
}

// PasswordChangeRequest finishes the recovery flow with a new password.
type PasswordChangeRequest struct {
	ChallengeKey   string `json:"challenge_key" binding:"required"`
	Password       string `json:"password" binding:"required"`
	PasswordRepeat string `json:"password_repeat" binding:"required"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports readiness with per-dependency detail.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
