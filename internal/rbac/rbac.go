// Package rbac answers authorization questions from static tables fixed at
// process start. Every check is a pure function; callers short-circuit on
// "no actor" before asking.
package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleReadOnly Role = "read_only"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// roleLevels is the total order used for minimum-level checks.
var roleLevels = map[Role]int{
	RoleReadOnly: 0,
	RoleStaff:    1,
	RoleAdmin:    2,
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// ParseRole normalizes a stored role string into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return r, nil
}

// ErrInvalidPermission indicates a permission string absent from the grant
// table. That is a configuration defect: the check fails closed and the
// caller is expected to alert, not to deny quietly.
var ErrInvalidPermission = errors.New("rbac: unknown permission")

// Permission keys, one per guarded resource action.
const (
	PermResidentRead    = "residents:read"
	PermResidentCreate  = "residents:create"
	PermResidentUpdate  = "residents:update"
	PermResidentDelete  = "residents:delete"
	PermHouseholdRead   = "households:read"
	PermHouseholdCreate = "households:create"
	PermHouseholdUpdate = "households:update"
	PermHouseholdDelete = "households:delete"
	PermSchemeRead      = "schemes:read"
	PermSchemeManage    = "schemes:manage"
	PermEventRead       = "events:read"
	PermEventManage     = "events:manage"
	PermUserRead        = "users:read"
	PermUserManage      = "users:manage"
	PermAuditRead       = "audit:read"
)

var allRoles = []Role{RoleReadOnly, RoleStaff, RoleAdmin}
var staffUp = []Role{RoleStaff, RoleAdmin}
var adminOnly = []Role{RoleAdmin}

// grants maps each permission to the roles allowed it. The table is built once
// at package load and never mutated.
var grants = buildGrants(map[string][]Role{
	PermResidentRead:    allRoles,
	PermResidentCreate:  staffUp,
	PermResidentUpdate:  staffUp,
	PermResidentDelete:  adminOnly,
	PermHouseholdRead:   allRoles,
	PermHouseholdCreate: staffUp,
	PermHouseholdUpdate: staffUp,
	PermHouseholdDelete: adminOnly,
	PermSchemeRead:      allRoles,
	PermSchemeManage:    staffUp,
	PermEventRead:       allRoles,
	PermEventManage:     staffUp,
	PermUserRead:        staffUp,
	PermUserManage:      adminOnly,
	PermAuditRead:       adminOnly,
})

func buildGrants(table map[string][]Role) map[string]map[Role]struct{} {
	out := make(map[string]map[Role]struct{}, len(table))
	for perm, roles := range table {
		set := make(map[Role]struct{}, len(roles))
		for _, r := range roles {
			set[r] = struct{}{}
		}
		out[perm] = set
	}
	return out
}

// Permissions returns the declared permission keys.
func Permissions() []string {
	out := make([]string, 0, len(grants))
	for k := range grants {
		out = append(out, k)
	}
	return out
}

// IsAllowed reports whether role holds the named permission. An unknown
// permission is a configuration error and fails closed with
// ErrInvalidPermission; a missing table entry must never silently allow.
func IsAllowed(role Role, permission string) (bool, error) {
	set, ok := grants[permission]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidPermission, permission)
	}
	_, allowed := set[role]
	return allowed, nil
}

// RoleIn reports whether role is one of the explicitly allowed roles.
func RoleIn(role Role, allowed ...Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// LevelAtLeast reports whether role sits at or above minimum in the role
// order. Roles outside the declared set never pass.
func LevelAtLeast(role, minimum Role) bool {
	lvl, ok := roleLevels[role]
	if !ok {
		return false
	}
	floor, ok := roleLevels[minimum]
	if !ok {
		return false
	}
	return lvl >= floor
}

// CanAccessWard reports whether an actor with the given role and home ward may
// touch targetWard. Admins pass everywhere; an empty targetWard means the
// operation is ward-agnostic and passes unconditionally.
func CanAccessWard(role Role, ownWard, targetWard string) bool {
	if role == RoleAdmin {
		return true
	}
	if targetWard == "" {
		return true
	}
	return ownWard == targetWard
}

// CanActOn reports whether an actor may operate on the target user's account:
// admins always, anyone on themselves.
func CanActOn(role Role, actorID, targetUserID string) bool {
	if role == RoleAdmin {
		return true
	}
	return actorID != "" && actorID == targetUserID
}
