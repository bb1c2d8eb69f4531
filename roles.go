package crm

// UserRole is the user's role. The set is closed: accounts are either
// elevated admins or standard engineers, and anything unrecognized falls
// back to the non-elevated default.
type UserRole string

const (
	// RoleEngineer is the standard, non-elevated role.
	RoleEngineer UserRole = "engineer"
	// RoleAdmin is the elevated role.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the two predefined roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleEngineer, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsElevated reports whether the role grants admin privileges.
func (r UserRole) IsElevated() bool {
	return r == RoleAdmin
}

// IsAtLeast checks if this role meets the minimum required level.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleEngineer: 0,
		RoleAdmin:    1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns the closed role set in hierarchical order.
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleEngineer,
		RoleAdmin,
	}
}

// ParseRole maps a stored role string onto the closed set. Unknown values
// resolve to RoleEngineer so absence of elevation is always the safe
// default.
func ParseRole(roleStr string) UserRole {
	if UserRole(roleStr) == RoleAdmin {
		return RoleAdmin
	}
	return RoleEngineer
}
