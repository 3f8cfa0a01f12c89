package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JunoAX/greenquest-go/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	authUserKey     = "auth_user_id"
	authUsernameKey = "auth_username"
	authIsAdminKey  = "auth_is_admin"
)

func abort(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail, "code": code})
}

// RequireAuth validates JWT token and sets user context
func RequireAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "AUTH_ERROR", "Authorization header required")
			return
		}

		// Check for Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abort(c, http.StatusUnauthorized, "AUTH_ERROR", "Invalid authorization format. Use: Bearer <token>")
			return
		}

		authenticate(c, jwtService, parts[1])
	}
}

// RequireStreamAuth authenticates websocket upgrades, where browsers cannot set
// headers, from the token query parameter. A bearer header is still accepted.
func RequireStreamAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	header := RequireAuth(jwtService)
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			header(c)
			return
		}
		authenticate(c, jwtService, token)
	}
}

func authenticate(c *gin.Context, jwtService *auth.JWTService, tokenString string) {
	claims, err := jwtService.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			abort(c, http.StatusUnauthorized, "AUTH_ERROR", "Token has expired")
		} else {
			abort(c, http.StatusUnauthorized, "AUTH_ERROR", "Invalid token")
		}
		return
	}

	// Store user info in context
	c.Set(authUserKey, claims.UserID)
	c.Set(authUsernameKey, claims.Username)
	c.Set(authIsAdminKey, claims.IsAdmin)

	c.Next()
}

// RequireAdmin ensures the authenticated account is an administrator
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, exists := c.Get(authIsAdminKey)
		if !exists {
			abort(c, http.StatusUnauthorized, "AUTH_ERROR", "Authentication required")
			return
		}

		if !isAdmin.(bool) {
			abort(c, http.StatusForbidden, "AUTH_ERROR", "Admin access required")
			return
		}

		c.Next()
	}
}

// GetAuthUserID retrieves the authenticated user ID from context
func GetAuthUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(authUserKey)
	if !exists {
		return uuid.Nil, false
	}
	return userID.(uuid.UUID), true
}

// GetAuthUsername retrieves the authenticated username from context
func GetAuthUsername(c *gin.Context) (string, bool) {
	username, exists := c.Get(authUsernameKey)
	if !exists {
		return "", false
	}
	return username.(string), true
}

// GetAuthIsAdmin retrieves whether the authenticated account is an administrator
func GetAuthIsAdmin(c *gin.Context) (bool, bool) {
	isAdmin, exists := c.Get(authIsAdminKey)
	if !exists {
		return false, false
	}
	return isAdmin.(bool), true
}
