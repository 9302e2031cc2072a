package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/workflow-approval/internal/application/service"
	"github.com/garyjia/workflow-approval/pkg/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextRoles  = "roles"
)

// AuthMiddleware requires a valid "Bearer <jwt>" Authorization header and
// stores the caller's user id and roles in the gin context
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		claims, err := utils.ValidateToken(secret, strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid token",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRoles, claims.Roles)
		c.Next()
	}
}

// actorFrom returns the authenticated caller
func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		ID:    c.GetString(ContextUserID),
		Roles: c.GetStringSlice(ContextRoles),
	}
}
