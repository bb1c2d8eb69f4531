package crm_test

import (
	"context"
	"testing"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyAccountConsumesToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	users := new(MockUsers)
	verifications := new(MockVerificationTokens)
	sink := new(MockActivitySink)

	raw := "raw-verification-secret"
	record := &crm.VerificationToken{
		ID:         uuid.New(),
		Identifier: "pepe.rone@example.com",
		TokenHash:  crm.HashToken(raw),
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	user := &crm.User{
		ID:    uuid.New(),
		Email: record.Identifier,
	}

	repo.On("Users").Return(users)
	repo.On("VerificationTokens").Return(verifications)
	runInTxPassthrough(t, repo)

	verifications.On("GetByHash", mock.Anything, record.TokenHash).Return(record, nil).Once()
	users.On("GetByIdentifierTx", mock.Anything, mock.Anything, record.Identifier).
		Return(user, nil).Once()
	users.On("MarkVerifiedTx", mock.Anything, mock.Anything, user.ID).Return(nil).Once()
	verifications.On("DeleteByIDTx", mock.Anything, mock.Anything, record.ID).Return(nil).Once()

	sink.On("Record", mock.Anything, mock.MatchedBy(func(evt crm.ActivityEvent) bool {
		return evt.EventType == crm.ActivityEventAccountVerified &&
			evt.UserID == user.ID.String()
	})).Return(nil).Once()

	handler := crm.NewVerifyAccountHandler(repo).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.VerifyAccountMessage{Token: raw})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	verifications.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestVerifyAccountUnknownToken(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	verifications := new(MockVerificationTokens)

	repo.On("VerificationTokens").Return(verifications)
	verifications.On("GetByHash", mock.Anything, mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	handler := crm.NewVerifyAccountHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.VerifyAccountMessage{Token: "never-issued"})
	assert.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAccountExpiredTokenIsDeleted(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	verifications := new(MockVerificationTokens)

	raw := "raw-verification-secret"
	record := &crm.VerificationToken{
		ID:         uuid.New(),
		Identifier: "pepe.rone@example.com",
		TokenHash:  crm.HashToken(raw),
		ExpiresAt:  time.Now().Add(-time.Minute),
	}

	repo.On("VerificationTokens").Return(verifications)
	verifications.On("GetByHash", mock.Anything, record.TokenHash).Return(record, nil).Once()
	verifications.On("DeleteByID", mock.Anything, record.ID).Return(nil).Once()

	handler := crm.NewVerifyAccountHandler(repo).WithLogger(testLogger{})

	// the caller sees the same error whether the token expired or never
	// existed
	err := handler.Execute(ctx, crm.VerifyAccountMessage{Token: raw})
	assert.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	verifications.AssertExpectations(t)
	repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAccountEmailMismatch(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepositoryManager)
	verifications := new(MockVerificationTokens)

	raw := "raw-verification-secret"
	record := &crm.VerificationToken{
		ID:         uuid.New(),
		Identifier: "pepe.rone@example.com",
		TokenHash:  crm.HashToken(raw),
		ExpiresAt:  time.Now().Add(time.Hour),
	}

	repo.On("VerificationTokens").Return(verifications)
	verifications.On("GetByHash", mock.Anything, record.TokenHash).Return(record, nil).Once()

	handler := crm.NewVerifyAccountHandler(repo).WithLogger(testLogger{})

	err := handler.Execute(ctx, crm.VerifyAccountMessage{
		Token: raw,
		Email: "somebody.else@example.com",
	})
	assert.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
}
