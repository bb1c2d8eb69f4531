package audit

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store is the persistence surface for audit entries. Append plus read,
// no updates.
type Store interface {
	Create(ctx context.Context, entry *Entry) error
	ListRecent(ctx context.Context, limit int, actions ...string) ([]*Entry, error)
}

type bunStore struct {
	repo repository.Repository[*Entry]
	db   *bun.DB
}

// NewStore creates a bun backed Store.
func NewStore(db *bun.DB) Store {
	repo := repository.NewRepository[*Entry](db, repository.ModelHandlers[*Entry]{
		NewRecord: func() *Entry { return &Entry{} },
		GetID: func(e *Entry) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Entry, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
	})

	return &bunStore{repo: repo, db: db}
}

func (s *bunStore) Create(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("audit entry must not be nil", errors.CategoryBadInput)
	}

	if _, err := s.repo.CreateTx(ctx, s.db, entry); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist audit entry")
	}

	return nil
}

func (s *bunStore) ListRecent(ctx context.Context, limit int, actions ...string) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	entries := []*Entry{}
	q := s.db.NewSelect().
		Model(&entries).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(limit)

	if len(actions) > 0 {
		q = q.Where("?TableAlias.action IN (?)", bun.In(actions))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list audit entries")
	}

	return entries, nil
}
