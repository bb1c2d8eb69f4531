package crm_test

import (
	"testing"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *crm.SessionTokenService {
	return crm.NewSessionTokenService(
		[]byte("test-signing-key"),
		1,
		720,
		"test-issuer",
		[]string{"test-audience"},
		testLogger{},
	)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	identity := TestIdentity{
		id:       "user-123",
		username: "pepe",
		email:    "pepe.rone@example.com",
		role:     "admin",
	}

	token, err := svc.Generate(identity, false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, crm.RoleAdmin, claims.Role())
	assert.True(t, claims.IsAuthenticated())
	assert.False(t, claims.RememberMe)
	assert.NotEmpty(t, claims.RegisteredClaims.ID)
}

func TestSessionTokenRememberMeExtendsExpiry(t *testing.T) {
	svc := newTestTokenService()
	identity := TestIdentity{id: "user-123", role: "engineer"}

	standard := svc.NewClaims(identity, false)
	extended := svc.NewClaims(identity, true)

	assert.WithinDuration(t, time.Now().Add(time.Hour), standard.Expires(), time.Minute)
	assert.WithinDuration(t, time.Now().Add(720*time.Hour), extended.Expires(), time.Minute)
	assert.True(t, extended.RememberMe)
}

func TestSessionTokenUnknownRoleFoldsToEngineer(t *testing.T) {
	svc := newTestTokenService()
	claims := svc.NewClaims(TestIdentity{id: "user-123", role: "superuser"}, false)

	assert.Equal(t, crm.RoleEngineer, claims.Role())
}

func TestSessionTokenExpired(t *testing.T) {
	expired := crm.NewSessionTokenService(
		[]byte("test-signing-key"),
		-1,
		0,
		"test-issuer",
		[]string{"test-audience"},
		testLogger{},
	)

	token, err := expired.Generate(TestIdentity{id: "user-123", role: "engineer"}, false)
	require.NoError(t, err)

	_, err = expired.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, crm.ErrSessionExpired)
}

func TestSessionTokenTamperedSignature(t *testing.T) {
	svc := newTestTokenService()
	other := crm.NewSessionTokenService(
		[]byte("a-different-signing-key"),
		1,
		0,
		"test-issuer",
		[]string{"test-audience"},
		testLogger{},
	)

	token, err := svc.Generate(TestIdentity{id: "user-123", role: "engineer"}, false)
	require.NoError(t, err)

	_, err = other.Validate(token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, crm.ErrSessionExpired)
}

func TestSessionTokenWrongIssuerRejected(t *testing.T) {
	issuerA := newTestTokenService()
	issuerB := crm.NewSessionTokenService(
		[]byte("test-signing-key"),
		1,
		0,
		"another-issuer",
		[]string{"test-audience"},
		testLogger{},
	)

	token, err := issuerB.Generate(TestIdentity{id: "user-123", role: "engineer"}, false)
	require.NoError(t, err)

	_, err = issuerA.Validate(token)
	require.Error(t, err)
}

func TestSignClaimsNil(t *testing.T) {
	svc := newTestTokenService()
	_, err := svc.SignClaims(nil)
	require.Error(t, err)
}
