package crm_test

import (
	"context"
	"database/sql"
	"testing"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-crm/audit"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouteAuthenticator(t *testing.T) *crm.RouteAuthenticator {
	t.Helper()
	authority := crm.NewAuthority(new(MockIdentityProvider), newMockConfig())
	httpAuth, err := crm.NewHTTPAuthenticator(authority, newMockConfig())
	require.NoError(t, err)
	return httpAuth
}

func TestSignupPostReplayMatchesFreshStatus(t *testing.T) {
	repo := new(MockRepositoryManager)
	users := new(MockUsers)
	verifications := new(MockVerificationTokens)
	mailer := new(MockMailer)

	repo.On("Users").Return(users)
	repo.On("VerificationTokens").Return(verifications)
	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
		Return(true).Twice()

	created := &crm.User{
		ID:       uuid.New(),
		Email:    "pepe.rone@example.com",
		Username: "pepe.rone",
		Role:     crm.RoleEngineer,
	}

	// first request creates the account, the second finds it already there
	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()
	users.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(created, nil).Once()
	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(created, nil).Once()

	verifications.On("DeleteByIdentifierTx", mock.Anything, mock.Anything, "pepe.rone@example.com").
		Return(nil).Once()
	verifications.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
		Return(&crm.VerificationToken{}, nil).Once()

	mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	controller := crm.NewAuthController(
		crm.WithControllerRepo(repo),
		crm.WithControllerAuther(newTestRouteAuthenticator(t)),
		crm.WithControllerMailer(mailer),
		crm.WithControllerLogger(testLogger{}),
	)

	var statuses []int
	newSignupCtx := func() router.Context {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*crm.SignupRequest)
			*payload = crm.SignupRequest{
				FirstName:       "Pepe",
				LastName:        "Rone",
				Email:           "pepe.rone@example.com",
				Password:        "password12345",
				ConfirmPassword: "password12345",
			}
		}).Return(nil)
		ctx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			statuses = append(statuses, args.Int(0))
		}).Return(nil)
		return ctx
	}

	require.NoError(t, controller.SignupPost(newSignupCtx()))
	require.NoError(t, controller.SignupPost(newSignupCtx()))

	// a replayed signup must be indistinguishable from a fresh one, the
	// status code included
	require.Len(t, statuses, 2)
	assert.Equal(t, router.StatusOK, statuses[0])
	assert.Equal(t, statuses[0], statuses[1])

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	verifications.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

// capturingAuditStore records the query handed to ListRecent.
type capturingAuditStore struct {
	limit   int
	actions []string
}

func (s *capturingAuditStore) Create(ctx context.Context, entry *audit.Entry) error {
	return nil
}

func (s *capturingAuditStore) ListRecent(ctx context.Context, limit int, actions ...string) ([]*audit.Entry, error) {
	s.limit = limit
	s.actions = actions
	return []*audit.Entry{}, nil
}

func TestAuditListCapsPageSize(t *testing.T) {
	newAuditCtx := func(limit string) router.Context {
		ctx := router.NewMockContext()
		ctx.On("Context").Return(context.Background())
		ctx.On("Query", "limit", "").Return(limit)
		ctx.On("Query", "action", "").Return("")
		ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)
		return ctx
	}

	newController := func(store *capturingAuditStore) *crm.AuthController {
		repo := new(MockRepositoryManager)
		repo.On("AuditLogs").Return(store)
		return crm.NewAuthController(
			crm.WithControllerRepo(repo),
			crm.WithControllerAuther(newTestRouteAuthenticator(t)),
			crm.WithControllerLogger(testLogger{}),
		)
	}

	t.Run("oversized limit is clamped", func(t *testing.T) {
		store := &capturingAuditStore{}
		require.NoError(t, newController(store).AuditList(newAuditCtx("10000")))
		assert.Equal(t, 500, store.limit)
	})

	t.Run("missing limit uses the default page size", func(t *testing.T) {
		store := &capturingAuditStore{}
		require.NoError(t, newController(store).AuditList(newAuditCtx("")))
		assert.Equal(t, 50, store.limit)
	})

	t.Run("reasonable limit passes through", func(t *testing.T) {
		store := &capturingAuditStore{}
		require.NoError(t, newController(store).AuditList(newAuditCtx("25")))
		assert.Equal(t, 25, store.limit)
	})
}
