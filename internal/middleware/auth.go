package middleware

import (
	"context"
	"net/http"

	"authgate/internal/modules/auth"
	"authgate/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// IdentityChecker resolves an access token into the caller's identity.
type IdentityChecker interface {
	Check(ctx context.Context, accessToken string) (*auth.Identity, error)
}

// TokenSource extracts the access token from a request (header or cookie).
type TokenSource interface {
	AccessToken(c *gin.Context) string
}

// RequireAuth validates the access token and stores user_id (int64) and
// role (string) in the gin context. Access tokens are stateless, so a
// logout does not invalidate them before they expire.
func RequireAuth(checker IdentityChecker, tokens TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokens.AccessToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, auth.CodeUnauthorized)
			return
		}

		identity, err := checker.Check(c.Request.Context(), token)
		if err != nil {
			status, code, _ := auth.HTTPError(err)
			if status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			response.Abort(c, status, code)
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("role", string(identity.Role))
		c.Next()
	}
}
