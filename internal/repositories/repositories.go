// Package repositories opens the index database, applies migrations and
// groups the per-kind tables behind one value.
package repositories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/migrations"
	"github.com/dmitrijs2005/toastit/internal/models"
	"github.com/dmitrijs2005/toastit/internal/repositories/index"
	"github.com/dmitrijs2005/toastit/internal/repositories/metadata"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type Repositories struct {
	DB       *sqlx.DB
	Tasks    *index.Table[models.TaskStub]
	Projects *index.Table[models.ProjectStub]
	Events   *index.EventTable
	Notes    *index.Table[models.TextStub]
	Journals *index.Table[models.JournalStub]
	Metadata metadata.Repository
}

func New(db *sqlx.DB) *Repositories {
	return &Repositories{
		DB:       db,
		Tasks:    index.NewTaskTable(db),
		Projects: index.NewProjectTable(db),
		Events:   index.NewEventTable(db),
		Notes:    index.NewNoteTable(db),
		Journals: index.NewJournalTable(db),
		Metadata: metadata.NewSQLRepository(db),
	}
}

func dialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidInput, driver)
}

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	d, err := dialect(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db.DB, ".")
}

// Open connects to the index database. SQLite is limited to one connection
// so the engine serializes writers and in-memory databases stay shared.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if _, err := dialect(driver); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, common.StorageError("open "+driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA busy_timeout = 5000",
			"PRAGMA journal_mode = WAL",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, common.StorageError(pragma, err)
			}
		}
	}
	return db, nil
}

// InitDatabase opens the database, migrates it and returns the repositories.
func InitDatabase(ctx context.Context, driver, dsn string) (*Repositories, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return New(db), nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
