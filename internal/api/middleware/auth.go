package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/apperrors"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
)

const userIDKey = "userID"

// TokenValidator resolves a bearer token to the active user it was issued for.
type TokenValidator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	log := logger.Component("auth")
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apperrors.Unauthorized(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			apperrors.Unauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := tokens.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected token")
			apperrors.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequireUserID writes a 401 and returns false when no user is authenticated.
func RequireUserID(c *gin.Context) (string, bool) {
	userID := GetUserID(c)
	if userID == "" {
		apperrors.Unauthorized(c, "User not authenticated")
		return "", false
	}
	return userID, true
}
