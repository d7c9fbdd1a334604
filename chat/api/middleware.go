package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"qna-chatbot/backend/pkg/jwt"
)

// AuthMiddleware validates the bearer token from the identity provider and
// stores the opaque user id in the request context. Everything below this
// middleware can assume "userId" is set.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("userId", claims.UserID)
		c.Next()
	}
}

// userID returns the authenticated user's id set by AuthMiddleware
func userID(c *gin.Context) string {
	return c.GetString("userId")
}
