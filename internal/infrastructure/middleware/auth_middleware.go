package middleware

import (
	"strings"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/services"
	"sportshub/pkg/errors"
	"sportshub/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or malformed.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Error(errors.NewUnauthorizedError("authorization header required"))
			c.Abort()
			return
		}

		token := BearerToken(authHeader)
		if token == "" {
			c.Error(errors.NewUnauthorizedError("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.Error(errors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		setUser(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user when a valid token is present
// and lets anonymous requests through.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c.GetHeader("Authorization")); token != "" {
			if claims, err := authService.ValidateToken(token); err == nil {
				setUser(c, claims)
			}
		}
		c.Next()
	}
}

func setUser(c *gin.Context, claims *services.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(claims.UserID)))
}

// UserID returns the authenticated user, if any.
func UserID(c *gin.Context) (domain.UserID, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	userID, ok := value.(domain.UserID)
	return userID, ok && userID != ""
}
