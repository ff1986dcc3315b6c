package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-passport/internal/usecase"
)

// RegistrationHandler exposes the two registration endpoints.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration endpoints. The extra middleware, usually
// a rate limiter, guards only the flow-start endpoint.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup, startMiddleware ...gin.HandlerFunc) {
	r.POST("/register", append(startMiddleware, h.Register)...)
	r.POST("/register/confirm", h.Confirm)
}

// Register starts the registration flow: it validates the requested account
// and mails a confirmation code.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	start, err := h.registration.Register(c.Request.Context(), req.Login, req.Email, req.Password, req.PasswordRepeat)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserExists, Status: http.StatusBadRequest, Message: "login or email already registered"},
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrLoginPolicyViolation, Status: http.StatusBadRequest, Message: "login does not meet requirements"},
			{Err: usecase.ErrEmailInvalid, Status: http.StatusBadRequest, Message: "email address is invalid"},
			{Err: usecase.ErrMailDelivery, Status: http.StatusBadRequest, Message: "could not deliver confirmation code"},
		}, http.StatusInternalServerError, "failed to start registration")
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		ChallengeKey: start.ChallengeKey,
		ExpiresAt:    start.ExpiresAt,
	})
}

// Confirm finishes the registration flow: it checks the mailed code and
// creates the account.
func (h *RegistrationHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid confirmation payload"))
		return
	}

	user, err := h.registration.Confirm(c.Request.Context(), req.ChallengeKey, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCodeInvalid, Status: http.StatusBadRequest, Message: "confirmation code invalid or expired"},
			{Err: usecase.ErrInvalidState, Status: http.StatusBadRequest, Message: "confirmation is not available for this challenge"},
			{Err: usecase.ErrUserExists, Status: http.StatusBadRequest, Message: "login or email already registered"},
		}, http.StatusInternalServerError, "failed to confirm registration")
		return
	}

	c.JSON(http.StatusOK, RegisterConfirmResponse{User: newUserSummary(user)})
}
