package auth

import (
	"slices"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/server/models"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Role   models.Role
	Email  string
}

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) Allowed() bool { return d == Allow }

// Policy describes who may reach a resource. OwnerID, when set, restricts
// non-admin callers to the resource owned by that user id.
type Policy struct {
	Roles   []models.Role
	OwnerID string
}

// Authorize decides whether identity satisfies policy. An ADMIN that the
// role list admits is not subject to the ownership check.
func Authorize(identity Identity, policy Policy) Decision {
	if identity.UserID == "" || !slices.Contains(policy.Roles, identity.Role) {
		return Deny
	}
	if policy.OwnerID == "" || identity.Role == models.RoleAdmin {
		return Allow
	}
	if identity.UserID != policy.OwnerID {
		return Deny
	}
	return Allow
}
