// Package httpkit provides HTTP utilities including identity extraction.
package httpkit

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity as asserted by the
// external identity service's token.
type Identity struct {
	UserID        uuid.UUID
	Roles         []string
	Authenticated bool
}

// HasRole checks if the user has a specific role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Identity{}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return Identity{}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	return Identity{UserID: uid, Roles: roleList, Authenticated: true}
}
