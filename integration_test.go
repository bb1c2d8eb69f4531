package crm_test

import (
	"context"
	"testing"

	crm "github.com/goliatone/go-crm"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Drives the account lifecycle against a real sqlite database so the raw
// SQL in the repositories runs for real: signup, replayed signup, token
// consumption, reset token rotation, and the single statement password
// swap.
func TestAccountLifecycleSQLite(t *testing.T) {
	ctx := context.Background()

	db, err := crm.OpenSQLite("file:account_lifecycle?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, crm.CreateTables(ctx, db))

	repo := crm.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	const email = "pepe.rone@example.com"

	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	tokens := new(MockTokenService)
	verification := issuedTestToken("verification-secret", crm.VerificationTokenTTL)
	firstReset := issuedTestToken("first-reset-secret", crm.ResetTokenTTL)
	secondReset := issuedTestToken("second-reset-secret", crm.ResetTokenTTL)

	tokens.On("Issue", crm.VerificationTokenTTL).Return(verification, nil).Twice()
	tokens.On("Issue", crm.ResetTokenTTL).Return(firstReset, nil).Once()
	tokens.On("Issue", crm.ResetTokenTTL).Return(secondReset, nil).Once()

	signup := crm.NewSignupHandler(repo, mailer).
		WithTokenService(tokens).
		WithLogger(testLogger{})

	var first *crm.SignupResponse
	require.NoError(t, signup.Execute(ctx, crm.SignupMessage{
		FirstName: "Pepe",
		LastName:  "Rone",
		Email:     email,
		Password:  "password12345",
		OnResponse: func(r *crm.SignupResponse) {
			first = r
		},
	}))
	require.NotNil(t, first)
	require.True(t, first.Created)

	user, err := repo.Users().GetByIdentifier(ctx, email)
	require.NoError(t, err)
	assert.False(t, user.IsVerified())
	assert.NotEqual(t, "password12345", user.PasswordHash)

	record, err := repo.VerificationTokens().GetByHash(ctx, verification.Hash)
	require.NoError(t, err)
	assert.Equal(t, email, record.Identifier)

	// a replayed signup finds the existing row instead of inserting
	var replay *crm.SignupResponse
	require.NoError(t, signup.Execute(ctx, crm.SignupMessage{
		FirstName: "Pepe",
		LastName:  "Rone",
		Email:     email,
		Password:  "password12345",
		OnResponse: func(r *crm.SignupResponse) {
			replay = r
		},
	}))
	require.NotNil(t, replay)
	assert.False(t, replay.Created)
	assert.Equal(t, user.ID, replay.User.ID)

	verify := crm.NewVerifyAccountHandler(repo).WithLogger(testLogger{})

	err = verify.Execute(ctx, crm.VerifyAccountMessage{Token: "bogus-secret"})
	require.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	require.NoError(t, verify.Execute(ctx, crm.VerifyAccountMessage{Token: "verification-secret"}))

	user, err = repo.Users().GetByIdentifier(ctx, email)
	require.NoError(t, err)
	assert.True(t, user.IsVerified())

	// the secret is single use, the record is gone after consumption
	_, err = repo.VerificationTokens().GetByHash(ctx, verification.Hash)
	require.True(t, goerrors.IsNotFound(err))

	err = verify.Execute(ctx, crm.VerifyAccountMessage{Token: "verification-secret"})
	require.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	initReset := crm.NewInitializePasswordResetHandler(repo, mailer).
		WithTokenService(tokens).
		WithLogger(testLogger{})

	require.NoError(t, initReset.Execute(ctx, crm.InitializePasswordResetMessage{Email: email}))
	require.NoError(t, initReset.Execute(ctx, crm.InitializePasswordResetMessage{Email: email}))

	// issuing a second reset secret overwrites the first digest
	_, err = repo.Users().GetByResetTokenHash(ctx, firstReset.Hash)
	require.True(t, goerrors.IsNotFound(err))

	holder, err := repo.Users().GetByResetTokenHash(ctx, secondReset.Hash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, holder.ID)

	finalize := crm.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	err = finalize.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    "first-reset-secret",
		Password: "brand-new-password",
	})
	require.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	require.NoError(t, finalize.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    "second-reset-secret",
		Password: "brand-new-password",
	}))

	user, err = repo.Users().GetByIdentifier(ctx, email)
	require.NoError(t, err)
	assert.NoError(t, crm.ComparePasswordAndHash("brand-new-password", user.PasswordHash))
	assert.Empty(t, user.ResetTokenHash)
	assert.Nil(t, user.ResetTokenExpiresAt)
	assert.True(t, user.IsVerified())

	// consumed reset secrets never verify again
	err = finalize.Execute(ctx, crm.FinalizePasswordResetMessage{
		Token:    "second-reset-secret",
		Password: "yet-another-password",
	})
	require.ErrorIs(t, err, crm.ErrInvalidOrExpiredToken)

	// one verification mail plus one per reset request; the replayed
	// signup sends nothing
	mailer.AssertNumberOfCalls(t, "Send", 3)
	tokens.AssertExpectations(t)
}
