package middleware

import (
	"net/http"

	"authgate/internal/domain"
	"authgate/internal/modules/auth"
	"authgate/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, auth.CodeUnauthorized)
			return
		}

		if role != string(requiredRole) {
			response.Abort(c, http.StatusForbidden, auth.CodeForbidden)
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
