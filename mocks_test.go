package crm_test

import (
	"context"
	"database/sql"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-crm/audit"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager implements crm.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx executes the callback with a zero bun.Tx when the expectation
// returns true, propagating the callback's error the way the real manager
// does. Returning an error instead short-circuits without running it.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if passthrough, ok := args.Get(0).(bool); ok && passthrough {
		var tx bun.Tx
		return f(ctx, tx)
	}
	return args.Error(0)
}

func (m *MockRepositoryManager) Users() crm.Users {
	args := m.Called()
	return args.Get(0).(crm.Users)
}

func (m *MockRepositoryManager) VerificationTokens() crm.VerificationTokens {
	args := m.Called()
	return args.Get(0).(crm.VerificationTokens)
}

func (m *MockRepositoryManager) AuditLogs() audit.Store {
	args := m.Called()
	return args.Get(0).(audit.Store)
}

// MockUsers mocks the user repository surface the handlers touch. The
// embedded interface covers the rest of the repository methods; calling an
// unmocked one panics, which is what we want in tests.
type MockUsers struct {
	mock.Mock
	crm.Users
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*crm.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*crm.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*crm.User, error) {
	args := m.Called(ctx, tx, identifier)
	if user, ok := args.Get(0).(*crm.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *crm.User, criteria ...repository.InsertCriteria) (*crm.User, error) {
	args := m.Called(ctx, tx, record)
	if user, ok := args.Get(0).(*crm.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *crm.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *crm.User, clientIP string) error {
	args := m.Called(ctx, user, clientIP)
	return args.Error(0)
}

func (m *MockUsers) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) GetByResetTokenHash(ctx context.Context, tokenHash string) (*crm.User, error) {
	args := m.Called(ctx, tokenHash)
	if user, ok := args.Get(0).(*crm.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUsers) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockVerificationTokens mocks the verification token repository.
type MockVerificationTokens struct {
	mock.Mock
	crm.VerificationTokens
}

func (m *MockVerificationTokens) GetByHash(ctx context.Context, tokenHash string) (*crm.VerificationToken, error) {
	args := m.Called(ctx, tokenHash)
	if record, ok := args.Get(0).(*crm.VerificationToken); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *crm.VerificationToken, criteria ...repository.InsertCriteria) (*crm.VerificationToken, error) {
	args := m.Called(ctx, tx, record)
	if token, ok := args.Get(0).(*crm.VerificationToken); ok {
		return token, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVerificationTokens) DeleteByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) error {
	args := m.Called(ctx, tx, identifier)
	return args.Error(0)
}

func (m *MockVerificationTokens) DeleteByID(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockVerificationTokens) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// MockUserTracker implements crm.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*crm.User, error) {
	args := m.Called(ctx, identifier)
	if user, ok := args.Get(0).(*crm.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *crm.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSuccessfulLogin(ctx context.Context, user *crm.User, clientIP string) error {
	args := m.Called(ctx, user, clientIP)
	return args.Error(0)
}

// MockIdentityProvider implements crm.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (crm.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if identity, ok := args.Get(0).(crm.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (crm.Identity, error) {
	args := m.Called(ctx, identifier)
	if identity, ok := args.Get(0).(crm.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements crm.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event crm.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockMailer implements crm.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg crm.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockTokenService implements crm.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ttl time.Duration) (crm.IssuedToken, error) {
	args := m.Called(ttl)
	return args.Get(0).(crm.IssuedToken), args.Error(1)
}

func (m *MockTokenService) Verify(raw, storedHash string, expiresAt time.Time) bool {
	args := m.Called(raw, storedHash, expiresAt)
	return args.Bool(0)
}

// TestIdentity implements crm.Identity
type TestIdentity struct {
	id       string
	username string
	email    string
	role     string
}

func (i TestIdentity) ID() string       { return i.id }
func (i TestIdentity) Username() string { return i.username }
func (i TestIdentity) Email() string    { return i.email }
func (i TestIdentity) Role() string     { return i.role }

type mockConfig struct {
	signingKey            string
	signingMethod         string
	contextKey            string
	tokenExpiration       int
	extendedTokenDuration int
	tokenLookup           string
	authScheme            string
	issuer                string
	audience              []string
	rejectedRouteKey      string
	rejectedRouteDefault  string
}

func newMockConfig() *mockConfig {
	return &mockConfig{
		signingKey:            "test-signing-key",
		signingMethod:         "HS256",
		contextKey:            "user",
		tokenExpiration:       1,
		extendedTokenDuration: 720,
		tokenLookup:           "header:Authorization",
		authScheme:            "Bearer",
		issuer:                "test-issuer",
		audience:              []string{"test-audience"},
		rejectedRouteKey:      "rejected_route",
		rejectedRouteDefault:  "/",
	}
}

func (c *mockConfig) GetSigningKey() string         { return c.signingKey }
func (c *mockConfig) GetSigningMethod() string      { return c.signingMethod }
func (c *mockConfig) GetContextKey() string         { return c.contextKey }
func (c *mockConfig) GetTokenExpiration() int       { return c.tokenExpiration }
func (c *mockConfig) GetExtendedTokenDuration() int { return c.extendedTokenDuration }
func (c *mockConfig) GetTokenLookup() string        { return c.tokenLookup }
func (c *mockConfig) GetAuthScheme() string         { return c.authScheme }
func (c *mockConfig) GetIssuer() string             { return c.issuer }
func (c *mockConfig) GetAudience() []string         { return c.audience }
func (c *mockConfig) GetRejectedRouteKey() string   { return c.rejectedRouteKey }
func (c *mockConfig) GetRejectedRouteDefault() string {
	return c.rejectedRouteDefault
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}
