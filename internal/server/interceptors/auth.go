package interceptors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "bearer "

// TokenValidator returns the subject of a valid session token.
type TokenValidator func(token string) (string, error)

// RequireBearer returns middleware that validates the Bearer token from the
// Authorization header and stores its subject in the request context.
// Requests without a valid token are rejected with 401.
func RequireBearer(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing or invalid authorization"})
			return
		}
		subject, err := validate(token)
		if err != nil || subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing or invalid authorization"})
			return
		}
		c.Request = c.Request.WithContext(WithSubject(c.Request.Context(), subject))
		c.Next()
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
