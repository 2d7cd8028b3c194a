package auth

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/model"
)

// RequireRole 仅允许指定角色访问
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    401,
				"message": "authentication required",
			})
			return
		}
		if !slices.Contains(roles, user.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    403,
				"message": "Anda tidak memiliki akses.",
			})
			return
		}
		c.Next()
	}
}
