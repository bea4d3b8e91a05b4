package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ecoshower-backend/internal/model"
)

// Context keys set by Identity.
const (
	ctxRequesterID   = "requester_id"
	ctxRequesterRole = "requester_role"
)

// Identity extracts the requester's id and role from headers populated by
// the upstream authorizer. Claim verification happens at the gateway; this
// service only trusts the forwarded identity. Requests without an identity
// are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		role := c.GetHeader("X-User-Role")
		if role != model.RoleAdmin {
			role = model.RoleUser
		}
		c.Set(ctxRequesterID, userID)
		c.Set(ctxRequesterRole, role)
		c.Next()
	}
}

// RequesterID returns the authenticated requester id, or "" when absent.
func RequesterID(c *gin.Context) string {
	return c.GetString(ctxRequesterID)
}

// RequesterRole returns the authenticated requester role, defaulting to the
// plain user role.
func RequesterRole(c *gin.Context) string {
	if role := c.GetString(ctxRequesterRole); role != "" {
		return role
	}
	return model.RoleUser
}
