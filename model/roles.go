package model

// Role is a closed enumeration of production roles. Every authorization
// decision in the core is a table lookup over these values, never a raw
// string comparison.
type Role string

const (
	RoleProducer          Role = "producer"
	RoleDirector          Role = "director"
	RoleEditor            Role = "editor"
	RolePresenter         Role = "presenter"
	RoleCameraOperator    Role = "camera_operator"
	RoleSoundEngineer     Role = "sound_engineer"
	RoleGraphicsDesigner  Role = "graphics_designer"
	RoleArtSetDesigner    Role = "art_set_designer"
	RoleProductionManager Role = "production_manager"
	RoleAdmin             Role = "admin"
)

// AllRoles lists every known role.
var AllRoles = []Role{
	RoleProducer,
	RoleDirector,
	RoleEditor,
	RolePresenter,
	RoleCameraOperator,
	RoleSoundEngineer,
	RoleGraphicsDesigner,
	RoleArtSetDesigner,
	RoleProductionManager,
	RoleAdmin,
}

// ParseRole returns the Role for s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// IsManager reports whether the role belongs to the manager tier. Manager
// tier roles may reset and reassign steps and perform task reassignment.
func (r Role) IsManager() bool {
	return r == RoleProductionManager || r == RoleAdmin
}

// RoleSet is a set of roles used by the static authorization tables.
type RoleSet map[Role]bool

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	rs := make(RoleSet, len(roles))
	for _, r := range roles {
		rs[r] = true
	}
	return rs
}

// Has reports whether the set contains the role.
func (rs RoleSet) Has(r Role) bool {
	return rs[r]
}

// Roles returns the members of the set in enumeration order.
func (rs RoleSet) Roles() []Role {
	out := make([]Role, 0, len(rs))
	for _, r := range AllRoles {
		if rs[r] {
			out = append(out, r)
		}
	}
	return out
}
