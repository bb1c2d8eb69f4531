package crm

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-crm/audit"
	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RegisterModels registers the package models with the persistence client
// so migrations and fixtures can resolve them.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*VerificationToken)(nil))
	persistence.RegisterModel((*audit.Entry)(nil))
}

// OpenSQLite opens a bun DB over a SQLite DSN. Use "file::memory:?cache=shared"
// for an in-memory database during tests and local development.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateTables creates the package tables. Intended for tests and local
// bootstrap; production schemas come from the embedded migrations.
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*VerificationToken)(nil),
		(*audit.Entry)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
