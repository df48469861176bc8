package auth

// Role is a market staff or farmer role.
type Role string

const (
	RoleFarmer    Role = "farmer"
	RoleWeighing  Role = "weighing"
	RoleLilav     Role = "lilav"
	RoleCommittee Role = "committee"
)

// NormalizeRole validates a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleFarmer, RoleWeighing, RoleLilav, RoleCommittee:
		return Role(value), true
	default:
		return "", false
	}
}

// Actor is the authenticated caller.
type Actor struct {
	Subject  string
	Role     Role
	FarmerID string
}

// IsFarmer reports whether the actor is a farmer restricted to their own lots.
func (a Actor) IsFarmer() bool {
	return a.Role == RoleFarmer
}

// CanAccessFarmer reports whether the actor may read or change lots owned by farmerID.
func (a Actor) CanAccessFarmer(farmerID string) bool {
	if !a.IsFarmer() {
		return true
	}
	return a.FarmerID != "" && a.FarmerID == farmerID
}

// HasRole reports whether the actor holds one of the roles.
func (a Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
