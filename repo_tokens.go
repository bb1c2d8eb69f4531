package crm

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationTokens stores email verification secrets by digest.
// Consumption keys on the token hash alone; identifiers never drive the
// primary lookup.
type VerificationTokens interface {
	repository.Repository[*VerificationToken]

	GetByHash(ctx context.Context, tokenHash string) (*VerificationToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*VerificationToken, error)

	DeleteByIdentifier(ctx context.Context, identifier string) error
	DeleteByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type verificationTokens struct {
	repository.Repository[*VerificationToken]
	db *bun.DB
}

var (
	_ VerificationTokens                        = (*verificationTokens)(nil)
	_ repository.Repository[*VerificationToken] = (*verificationTokens)(nil)
)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	repo := repository.NewRepository[*VerificationToken](db, repository.ModelHandlers[*VerificationToken]{
		NewRecord: func() *VerificationToken { return &VerificationToken{} },
		GetID: func(t *VerificationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *VerificationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "identifier"
		},
	})

	return &verificationTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *verificationTokens) GetByHash(ctx context.Context, tokenHash string) (*VerificationToken, error) {
	return r.GetByHashTx(ctx, r.db, tokenHash)
}

func (r *verificationTokens) GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *verificationTokens) DeleteByIdentifier(ctx context.Context, identifier string) error {
	return r.DeleteByIdentifierTx(ctx, r.db, identifier)
}

func (r *verificationTokens) DeleteByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) error {
	_, err := tx.NewRaw(`
		DELETE FROM "verification_tokens"
		WHERE "identifier" = ?;
	`, identifier).Exec(ctx)

	return err
}

func (r *verificationTokens) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.DeleteByIDTx(ctx, r.db, id)
}

func (r *verificationTokens) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(`
		DELETE FROM "verification_tokens"
		WHERE "id" = ?;
	`, id).Exec(ctx)

	return err
}
