package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
)

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}

// SessionMiddleware resolves the `token` header to a user and puts the user's
// identity and company on the request context. Requests without a token pass through.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		email, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		user, err := models.GetUserByEmail(c.Request.Context(), email)
		if err != nil || (user.IsActive != nil && !*user.IsActive) {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserEmailInContext(ctx, user.Email)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.FullName())
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		ctx = utils.SetTenantIdInContext(ctx, user.TenantId)
		ctx = utils.SetCompanyIdInContext(ctx, user.CompanyId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
