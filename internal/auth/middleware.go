package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the gin context key the middleware stores the resolved
// user under.
const userIDKey = "auth_user_id"

// Middleware resolves the Authorization bearer token into a user ID.
// It never rejects: unauthenticated requests proceed with an empty user
// and handlers that need a session respond with their own typed failure.
func Middleware(sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
		c.Set(userIDKey, sessions.Resolve(token))
		c.Next()
	}
}

// UserID returns the resolved user for the request, or empty.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequireUser aborts with 401 when no session is present. Used for the
// CRUD surfaces where an anonymous request has nothing to operate on.
func RequireUser(c *gin.Context) (string, bool) {
	userID := UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return userID, true
}
