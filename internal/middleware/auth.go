package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/api/respond"
	"github.com/aliskhannn/ai-image-analyzer/internal/auth"
)

// userIDKey is the context key under which the authenticated user's
// identifier is stored.
const userIDKey = "user_id"

// TokenVerifier resolves a bearer token to a user identifier.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Auth returns a middleware that requires a valid bearer token and
// stores the resolved user identifier in the request context.
func Auth(v TokenVerifier) func(c *ginext.Context) {
	return func(c *ginext.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		userID, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) {
				respond.Fail(c, http.StatusUnauthorized, err)
				c.Abort()
				return
			}

			zlog.Logger.Err(err).Msg("token verification failed")
			respond.Fail(c, http.StatusServiceUnavailable, fmt.Errorf("authentication service unavailable"))
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user's identifier set by Auth.
func UserID(c *ginext.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}

	id, ok := v.(string)

	return id, ok
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}
