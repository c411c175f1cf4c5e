package middleware

import (
	"net/http"
	"strings"

	"kidsclub/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by JWTAuthMiddleware.
const (
	ContextParentID = "parentID"
	ContextEmail    = "email"
	ContextRole     = "role"
)

// JWTAuthMiddleware validates the bearer token and stores the caller's
// identity in the context.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		identity, err := utils.ExtractIdentity(tokenString)
		if err != nil {
			zap.L().Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextParentID, identity.Subject)
		c.Set(ContextEmail, identity.Email)
		c.Set(ContextRole, identity.Role)
		c.Next()
	}
}

// IsAdmin reports whether the authenticated caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextRole) == "admin"
}
