package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sidequest/internal/client/migrations"
	"github.com/dmitrijs2005/sidequest/internal/client/repositories/localstore"
	"github.com/dmitrijs2005/sidequest/internal/dbx"
	"github.com/pressly/goose/v3"
)

// Repositories bundles the local storage handles opened by InitDatabase.
type Repositories struct {
	DB    *sql.DB
	Local localstore.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the SQLite file at dsn and brings
// its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate local db: %w", err)
	}

	return &Repositories{
		DB:    db,
		Local: localstore.NewSQLiteRepository(db),
	}, nil
}
