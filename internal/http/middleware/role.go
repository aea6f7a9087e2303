package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

func RequireRole(allowed ...staff.Role) gin.HandlerFunc {
	allowedSet := map[staff.Role]struct{}{}
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, found := allowedSet[actor.Role]; !found {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
