package middleware

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moritani/inventory-api/internal/constants"
	"github.com/moritani/inventory-api/internal/errors"
	"github.com/moritani/inventory-api/internal/token"
)

// RequireAuth verifies the Bearer access token and stores the caller's
// identity in the request context. An expired token gets its own error
// code so clients know a refresh attempt is worthwhile; any other failure
// is a plain 401.
func RequireAuth(codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			errors.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			errors.Unauthorized(c, "Authorization header must use the Bearer scheme")
			c.Abort()
			return
		}

		claims, err := codec.ParseAccessToken(tokenStr)
		if err != nil {
			if goerrors.Is(err, token.ErrExpired) {
				errors.RespondWithCode(c, http.StatusUnauthorized, errors.ErrCodeAccessTokenExpired, "Access token expired")
			} else {
				errors.Unauthorized(c, "Invalid access token")
			}
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Set(constants.ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user's id from the context.
func GetUserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(constants.ContextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// GetUsername returns the authenticated user's username from the context.
func GetUsername(c *gin.Context) (string, bool) {
	v, ok := c.Get(constants.ContextKeyUsername)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}
