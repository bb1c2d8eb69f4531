package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity model. VerifiedAt doubles as the verification flag:
// null means the account has not confirmed its email yet. At most one live
// reset token exists per user; issuing a new one overwrites the previous
// hash.
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                UserRole       `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName           string         `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName            string         `bun:"last_name,notnull" json:"last_name,omitempty"`
	Username            string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email               string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone               string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash        string         `bun:"password_hash" json:"-"`
	VerifiedAt          *time.Time     `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	ResetTokenHash      string         `bun:"reset_token_hash,nullzero" json:"-"`
	ResetTokenExpiresAt *time.Time     `bun:"reset_token_expires_at,nullzero" json:"-"`
	LoginAttempts       int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt      *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt          *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	LastLoginIP         string         `bun:"last_login_ip" json:"last_login_ip,omitempty"`
	Metadata            map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt           *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsVerified reports whether the account completed email verification.
func (u *User) IsVerified() bool {
	return u != nil && u.VerifiedAt != nil
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// VerificationToken stores the digest of a single use email verification
// secret. The raw secret is only ever transmitted to the user; issuing a
// new token for an identifier removes the previous record.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vtk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Identifier    string     `bun:"identifier,notnull" json:"identifier,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
