package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the authenticated user id. The gateway in front of
// this service validates credentials and injects the header; a request
// without it never passed authentication.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// Identity rejects requests missing the trusted identity header and
// exposes the user id to handlers.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
