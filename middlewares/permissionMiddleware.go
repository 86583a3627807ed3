package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
)

// RequireAuth rejects requests that neither the session nor the JWT middleware identified.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserRoleFromContext(c.Request.Context()); !ok {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		c.Next()
	}
}

func RequirePermission(p models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := utils.GetUserRoleFromContext(c.Request.Context())
		if !ok {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		if !models.HasPermission(models.UserRole(role), p) {
			abort(c, http.StatusForbidden, utils.ErrorForbidden)
			return
		}
		c.Next()
	}
}

// RequireRole admits only the listed roles. Used for operational endpoints.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := utils.GetUserRoleFromContext(c.Request.Context())
		if !ok {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		for _, r := range roles {
			if models.UserRole(role) == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, utils.ErrorForbidden)
	}
}
