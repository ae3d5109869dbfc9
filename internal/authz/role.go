// Package authz centralizes role-scoped authorization for the visit tracker.
// Every handler resolves visibility and permission questions through this
// package instead of re-encoding role checks per entity.
package authz

import "fmt"

// Role is the closed set of account roles stored on a user.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RolePromoter   Role = "PROMOTER"
	RoleViewer     Role = "VIEWER"
)

// Tier collapses roles into the privilege classes the engine reasons about.
// SUPER_ADMIN and ADMIN are indistinguishable for authorization purposes.
type Tier string

const (
	TierAdministrator Tier = "ADMINISTRATOR"
	TierSupervisor    Tier = "SUPERVISOR"
	TierPromoter      Tier = "PROMOTER"
	TierViewer        Tier = "VIEWER"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSupervisor, RolePromoter, RoleViewer:
		return true
	}
	return false
}

// Tier projects the role onto its privilege class.
func (r Role) Tier() Tier {
	switch r {
	case RoleSuperAdmin, RoleAdmin:
		return TierAdministrator
	case RoleSupervisor:
		return TierSupervisor
	case RolePromoter:
		return TierPromoter
	default:
		return TierViewer
	}
}

// Roles returns every valid role, in descending read-scope order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleSupervisor, RolePromoter, RoleViewer}
}
