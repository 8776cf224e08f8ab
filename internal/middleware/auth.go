package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/pinboard-api/internal/constants"
	apierrors "github.com/yukikurage/pinboard-api/internal/errors"
)

// TokenValidator resolves a bearer token to a user ID.
type TokenValidator interface {
	Validate(token string) (uint64, error)
}

// RequireAuth checks for a valid bearer token in the Authorization header
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		userID, err := validator.Validate(token)
		if err != nil {
			apierrors.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		// Store user ID in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	v, ok := userID.(uint64)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}
