package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/utils"
)

// AuthMiddleware accepts `Authorization: Bearer <jwt>` for service callers. A request
// already authenticated by session is left alone.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}
		if _, ok := utils.GetUserRoleFromContext(c.Request.Context()); ok {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		validate, err := utils.JwtValidate(auth[len(bearer):])
		if err != nil || !validate.Valid {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.CompanyId == "" {
			abort(c, http.StatusUnauthorized, utils.ErrorUnauthorized)
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), claim.ID)
		ctx = utils.SetUserNameInContext(ctx, fmt.Sprintf("service:%d", claim.ID))
		ctx = utils.SetUserRoleInContext(ctx, claim.Role)
		ctx = utils.SetCompanyIdInContext(ctx, claim.CompanyId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
