package crm

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// tokenSecretBytes gives 256 bits of entropy per secret.
const tokenSecretBytes = 32

// IssuedToken is the result of minting a single use secret. Raw is
// transmitted to the user and never persisted; Hash is what the store
// keeps.
type IssuedToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// TokenService issues and verifies single use secrets for email
// verification and password reset.
type TokenService interface {
	Issue(ttl time.Duration) (IssuedToken, error)
	Verify(raw, storedHash string, expiresAt time.Time) bool
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	now func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService() *TokenServiceImpl {
	return &TokenServiceImpl{now: time.Now}
}

// Issue generates a cryptographically random secret and its digest.
func (ts *TokenServiceImpl) Issue(ttl time.Duration) (IssuedToken, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return IssuedToken{}, errors.Wrap(err, errors.CategoryInternal, "failed to generate token secret")
	}

	raw := hex.EncodeToString(buf)

	return IssuedToken{
		Raw:       raw,
		Hash:      HashToken(raw),
		ExpiresAt: ts.now().Add(ttl),
	}, nil
}

// Verify recomputes the digest of raw and compares it against storedHash in
// constant time. Unequal digest lengths are a non-match, not an error. An
// expired token never verifies regardless of hash match; the caller is
// responsible for removing the record once expiry is detected.
func (ts *TokenServiceImpl) Verify(raw, storedHash string, expiresAt time.Time) bool {
	if !expiresAt.After(ts.now()) {
		return false
	}

	computed := HashToken(raw)
	if len(computed) != len(storedHash) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// HashToken derives the storable digest of a raw token secret.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
