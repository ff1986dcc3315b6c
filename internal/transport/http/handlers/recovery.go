package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-passport/internal/usecase"
)

// RecoveryHandler exposes the three password recovery endpoints.
type RecoveryHandler struct {
	recovery *usecase.RecoveryService
}

func NewRecoveryHandler(recovery *usecase.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// RegisterRoutes binds recovery endpoints. The extra middleware, usually a
// rate limiter, guards only the flow-start endpoint.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, startMiddleware ...gin.HandlerFunc) {
	r.POST("/recover", append(startMiddleware, h.Recover)...)
	r.POST("/recover/code", h.ConfirmCode)
	r.POST("/recover/password", h.ChangePassword)
}

// Recover starts the recovery flow: it mails a reset code to the account's
// address.
func (h *RecoveryHandler) Recover(c *gin.Context) {
	var req RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid recovery payload"))
		return
	}

	start, err := h.recovery.Recover(c.Request.Context(), req.Login)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "no account matches this login"},
			{Err: usecase.ErrEmailInvalid, Status: http.StatusBadRequest, Message: "email address is invalid"},
			{Err: usecase.ErrMailDelivery, Status: http.StatusBadRequest, Message: "could not deliver recovery code"},
		}, http.StatusInternalServerError, "failed to start recovery")
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		ChallengeKey: start.ChallengeKey,
		ExpiresAt:    start.ExpiresAt,
	})
}

// ConfirmCode checks the mailed reset code and unlocks the password change
// step.
func (h *RecoveryHandler) ConfirmCode(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid code payload"))
		return
	}

	if err := h.recovery.ConfirmResetCode(c.Request.Context(), req.ChallengeKey, req.Code); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCodeInvalid, Status: http.StatusBadRequest, Message: "recovery code invalid or expired"},
			{Err: usecase.ErrInvalidState, Status: http.StatusBadRequest, Message: "code confirmation is not available for this challenge"},
		}, http.StatusInternalServerError, "failed to confirm recovery code")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "code confirmed"})
}

// ChangePassword finishes the recovery flow with the new password.
func (h *RecoveryHandler) ChangePassword(c *gin.Context) {
	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid password payload"))
		return
	}

	if err := h.recovery.ChangePassword(c.Request.Context(), req.ChallengeKey, req.Password, req.PasswordRepeat); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrCodeInvalid, Status: http.StatusBadRequest, Message: "recovery challenge invalid or expired"},
			{Err: usecase.ErrInvalidState, Status: http.StatusBadRequest, Message: "password change is not available for this challenge"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "account no longer exists"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}
