package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"org_membership/internal/models"
	"org_membership/internal/repository"
)

// ContextIdentityKey is the gin context key holding the caller's Identity.
const ContextIdentityKey = "identity"

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	Parse(raw string) (*Claims, error)
}

// UserLookup resolves the user a token was issued to.
type UserLookup interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// JWT returns a Gin middleware that validates the bearer token in the
// Authorization header, verifies the user still exists, and stores the
// caller's Identity in both the gin context and the request context.
func JWT(tokens TokenParser, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abortUnauthorized(c, "malformed authorization header")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		// Verify user still exists
		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("resolve token user")
			}
			abortUnauthorized(c, "user not found")
			return
		}

		id := Identity{UserID: user.UserID, Email: user.Email}
		c.Set(ContextIdentityKey, id)
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":     "Unauthorized",
		"message":    message,
		"statusCode": http.StatusUnauthorized,
	})
}
