package middleware

import (
	"net/http"
	"slices"

	"patapesa/internal/model"

	"github.com/gin-gonic/gin"
)

// RequireRole admits only tokens whose role is one of roles. It must run
// after JWTAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(AuthRoleKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": model.StatusError, "message": "No role in request context"})
			return
		}
		if r, isString := role.(string); !isString || !slices.Contains(roles, r) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": model.StatusError, "message": "You do not have permission to access this resource"})
			return
		}
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return RequireRole(model.RoleAdmin)
}

// UserMiddleware admits any authenticated participant, admins included
func UserMiddleware() gin.HandlerFunc {
	return RequireRole(model.RoleUser, model.RoleAdmin)
}
