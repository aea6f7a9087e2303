package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/auth"
	"github.com/lumenmfb/backend/internal/domain/staff"
)

// Context keys set by RequireAuth.
const (
	CtxUserID    = "user_id"
	CtxUserRole  = "user_role"
	CtxUserStaff = "user_is_staff"
	CtxSessionID = "session_id"
)

func RequireAuth(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.AccessToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(token)
		if err != nil || claims.Type != auth.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		role := staff.Role(claims.Role)
		if !role.IsStaff() {
			role = staff.RoleCustomer
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserRole, role)
		c.Set(CtxUserStaff, role.IsStaff())
		c.Set(CtxSessionID, claims.SessionID)
		c.Next()
	}
}

// ActorFrom returns the authenticated caller set by RequireAuth.
func ActorFrom(c *gin.Context) (staff.Actor, bool) {
	uid := c.GetString(CtxUserID)
	if uid == "" {
		return staff.Actor{}, false
	}
	role, _ := c.Get(CtxUserRole)
	r, _ := role.(staff.Role)
	if r == "" {
		r = staff.RoleCustomer
	}
	return staff.Actor{UserID: uid, Role: r}, true
}
