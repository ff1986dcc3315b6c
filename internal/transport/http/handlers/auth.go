package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-passport/internal/usecase"
)

// AuthHandler exposes the two login endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authorization endpoints. The extra middleware, usually
// a rate limiter, guards only the flow-start endpoint.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, startMiddleware ...gin.HandlerFunc) {
	r.POST("/auth", append(startMiddleware, h.Authorize)...)
	r.POST("/auth/verify", h.Verify)
}

// Authorize starts the login flow: it checks credentials and mails a
// sign-in code.
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid authorization payload"))
		return
	}

	start, err := h.auth.Authorize(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: "login or password incorrect"},
			{Err: usecase.ErrMailDelivery, Status: http.StatusBadRequest, Message: "could not deliver sign-in code"},
		}, http.StatusInternalServerError, "failed to start authorization")
		return
	}

	c.JSON(http.StatusOK, ChallengeResponse{
		ChallengeKey: start.ChallengeKey,
		ExpiresAt:    start.ExpiresAt,
	})
}

// Verify finishes the login flow: it checks the mailed code and issues a
// bearer token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	result, err := h.auth.Verify(c.Request.Context(), req.ChallengeKey, req.Code)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCodeInvalid, Status: http.StatusBadRequest, Message: "sign-in code invalid or expired"},
			{Err: usecase.ErrInvalidState, Status: http.StatusBadRequest, Message: "verification is not available for this challenge"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: "account no longer exists"},
		}, http.StatusInternalServerError, "failed to verify authorization")
		return
	}

	c.JSON(http.StatusOK, AuthVerifyResponse{
		User:        newUserSummary(result.User),
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
	})
}
