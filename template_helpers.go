package crm

import (
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be used
// with go-template's WithGlobalData option for session-aware templates.
//
// In templates, you can then use:
//
//	{% if current_user %}
//	{% if current_user|has_role:"admin" %}
//	{% if current_user|is_admin %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_at_least":      isAtLeast,
		"is_admin":         isAdmin,
		"can_manage_users": isAdmin,

		// Role constants for easy template access
		"roles": map[string]string{
			"engineer": string(RoleEngineer),
			"admin":    string(RoleAdmin),
		},
	}
}

// TemplateHelpersWithUser returns template helpers with a specific user set
// as current_user.
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with user data taken
// from the router context, where the session middleware stored it.
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	return helpers
}

// GetTemplateUser extracts user data from router context for template usage.
// It returns the user object and a boolean indicating if it was found.
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// isAuthenticated checks if the provided user object represents a signed-in
// identity
func isAuthenticated(user any) bool {
	if user == nil {
		return false
	}

	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case *SessionClaims:
		return u != nil && u.IsAuthenticated()
	case map[string]any:
		// Handle JSON-converted user objects
		return len(u) > 0
	default:
		return false
	}
}

// hasRole checks if the user has the specified role
func hasRole(user any, role string) bool {
	targetRole := UserRole(role)

	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Role == targetRole
	case User:
		return u.Role == targetRole
	case *SessionClaims:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case map[string]any:
		if userRole, exists := u["user_role"]; exists {
			if roleStr, ok := userRole.(string); ok {
				return UserRole(roleStr) == targetRole
			}
		}
		return false
	default:
		return false
	}
}

// isAtLeast checks if the user's role is at least the minimum required level
func isAtLeast(user any, minRole string) bool {
	minRoleTyped := UserRole(minRole)

	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Role.IsAtLeast(minRoleTyped)
	case User:
		return u.Role.IsAtLeast(minRoleTyped)
	case *SessionClaims:
		if u == nil {
			return false
		}
		return u.IsAtLeast(minRole)
	case map[string]any:
		if userRole, exists := u["user_role"]; exists {
			if roleStr, ok := userRole.(string); ok {
				return UserRole(roleStr).IsAtLeast(minRoleTyped)
			}
		}
		return false
	default:
		return false
	}
}

// isAdmin checks if the user carries the elevated role
func isAdmin(user any) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return u.Role.IsElevated()
	case User:
		return u.Role.IsElevated()
	case *SessionClaims:
		if u == nil {
			return false
		}
		return u.IsElevated()
	case map[string]any:
		if userRole, exists := u["user_role"]; exists {
			if roleStr, ok := userRole.(string); ok {
				return UserRole(roleStr).IsElevated()
			}
		}
		return false
	default:
		return false
	}
}
