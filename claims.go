package crm

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims carries the authorized role and expiry bundle for a
// session. The role is re-fetched from the store on refresh; a role string
// on its own is never trustworthy, callers must check Authenticated first.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid,omitempty"`
	UserRole      string `json:"role,omitempty"`
	RememberMe    bool   `json:"rm,omitempty"`
	Authenticated bool   `json:"auth"`
}

// AnonymousClaims is the lowest-privilege state a session can be downgraded
// to, used when the underlying identity no longer exists.
func AnonymousClaims() *SessionClaims {
	return &SessionClaims{
		UserRole:      string(RoleEngineer),
		Authenticated: false,
	}
}

// Subject returns the subject claim
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the authorized role, already folded onto the closed set.
func (c *SessionClaims) Role() UserRole {
	return ParseRole(c.UserRole)
}

// IsAuthenticated reports whether the claims belong to a live identity.
func (c *SessionClaims) IsAuthenticated() bool {
	return c.Authenticated && c.UserID() != ""
}

// IsElevated reports whether the session carries admin privileges. Never
// true for unauthenticated claims.
func (c *SessionClaims) IsElevated() bool {
	return c.IsAuthenticated() && c.Role().IsElevated()
}

// HasRole checks if the session carries a specific role
func (c *SessionClaims) HasRole(role string) bool {
	return c.IsAuthenticated() && c.Role() == ParseRole(role) && UserRole(role).IsValid()
}

// IsAtLeast checks if the session role is at least the minimum required role
func (c *SessionClaims) IsAtLeast(minRole string) bool {
	return c.IsAuthenticated() && c.Role().IsAtLeast(ParseRole(minRole))
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
