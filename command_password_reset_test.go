package crm_test

import (
	"context"
	"strings"
	"testing"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetUnknownIdentifierStaysOpaque(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)
	tokens := new(MockTokenService)
	mailer := new(MockMailer)

	repo.On("Users").Return(users)
	users.On("GetByIdentifier", mock.Anything, "nobody@example.com").
		Return(nil, repository.NewRecordNotFound()).Once()

	var resp *crm.InitializePasswordResetResponse
	handler := crm.NewInitializePasswordResetHandler(repo, mailer).
		WithTokenService(tokens).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.InitializePasswordResetMessage{
		Email: "nobody@example.com",
		OnResponse: func(r *crm.InitializePasswordResetResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.False(t, resp.Delivered)

	tokens.AssertNotCalled(t, "Issue", mock.Anything)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestInitializePasswordResetStoresDigestAndMailsSecret(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)
	tokens := new(MockTokenService)
	mailer := new(MockMailer)

	user := &crm.User{
		ID:    uuid.New(),
		Email: "pepe.rone@example.com",
	}

	issued := issuedTestToken("raw-reset-secret", crm.ResetTokenTTL)
	tokens.On("Issue", crm.ResetTokenTTL).Return(issued, nil).Once()

	repo.On("Users").Return(users)
	users.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	// only the digest reaches the store; the raw secret goes out by mail
	users.On("SetResetToken", mock.Anything, user.ID, issued.Hash, issued.ExpiresAt).
		Return(nil).Once()

	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg crm.MailMessage) bool {
		return msg.To == user.Email &&
			strings.Contains(msg.Text, issued.Raw) &&
			!strings.Contains(msg.Text, issued.Hash)
	})).Return(nil).Once()

	var resp *crm.InitializePasswordResetResponse
	handler := crm.NewInitializePasswordResetHandler(repo, mailer).
		WithTokenService(tokens).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.InitializePasswordResetMessage{
		Email: user.Email,
		OnResponse: func(r *crm.InitializePasswordResetResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.Delivered)

	users.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestFinalizePasswordResetUnknownToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)

	repo.On("Users").Return(users)
	users.On("GetByResetTokenHash", mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := crm.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    "never-issued",
		Password: "new-password-123",
	})
	assert.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetExpiredTokenIsCleared(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)

	raw := "raw-reset-secret"
	expiresAt := time.Now().Add(-time.Minute)
	user := &crm.User{
		ID:                  uuid.New(),
		Email:               "pepe.rone@example.com",
		ResetTokenHash:      crm.HashToken(raw),
		ResetTokenExpiresAt: &expiresAt,
	}

	repo.On("Users").Return(users)
	users.On("GetByResetTokenHash", mock.Anything, user.ResetTokenHash).
		Return(user, nil).Once()
	users.On("ClearResetToken", mock.Anything, user.ID).Return(nil).Once()

	handler := crm.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    raw,
		Password: "new-password-123",
	})
	assert.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	users.AssertExpectations(t)
	repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizePasswordResetSwapsPassword(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)
	sink := new(MockActivitySink)

	raw := "raw-reset-secret"
	expiresAt := time.Now().Add(30 * time.Minute)
	user := &crm.User{
		ID:                  uuid.New(),
		Email:               "pepe.rone@example.com",
		ResetTokenHash:      crm.HashToken(raw),
		ResetTokenExpiresAt: &expiresAt,
	}

	repo.On("Users").Return(users)
	runInTxPassthrough(t, repo)

	users.On("GetByResetTokenHash", mock.Anything, user.ResetTokenHash).
		Return(user, nil).Once()
	users.On("ResetPasswordTx", mock.Anything, mock.Anything, user.ID, mock.MatchedBy(func(hash string) bool {
		return hash != "" && hash != "new-password-123" &&
			crm.ComparePasswordAndHash("new-password-123", hash) == nil
	})).Return(nil).Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt crm.ActivityEvent) bool {
		return evt.EventType == crm.ActivityEventPasswordResetSuccess &&
			evt.UserID == user.ID.String()
	})).Return(nil).Once()

	handler := crm.NewFinalizePasswordResetHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    raw,
		Password: "new-password-123",
	})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	sink.AssertExpectations(t)
}
