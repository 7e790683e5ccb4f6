package http

import (
	"net/http"
	"strings"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/services"
	"sportshub/pkg/errors"
	"sportshub/pkg/validation"

	"github.com/gin-gonic/gin"
)

// AuthHandler issues tokens. There is no credential store: a user id is
// derived from the username, and identity beyond that belongs to the
// upstream identity provider.
type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

type tokenResponse struct {
	UserID       domain.UserID `json:"user_id"`
	Username     string        `json:"username"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiresIn    int           `json:"expires_in"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	h.issue(c, http.StatusCreated, services.UserIDFor(req.Username), req.Username)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	h.issue(c, http.StatusOK, services.UserIDFor(req.Username), req.Username)
}

func (h *AuthHandler) issue(c *gin.Context, status int, userID domain.UserID, username string) {
	accessToken, err := h.authService.GenerateToken(userID, username)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token").WithCause(err))
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken(userID, username)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate refresh token").WithCause(err))
		return
	}

	c.JSON(status, tokenResponse{
		UserID:       userID,
		Username:     username,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(h.authService.AccessTokenTTL().Seconds()),
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Error(errors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	accessToken, err := h.authService.GenerateToken(claims.UserID, claims.Username)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token").WithCause(err))
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		UserID:      claims.UserID,
		Username:    claims.Username,
		AccessToken: accessToken,
		ExpiresIn:   int(h.authService.AccessTokenTTL().Seconds()),
	})
}
