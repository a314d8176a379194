// Package index stores entry stubs, one SQL table per kind.
//
// Queries are written once with sqlx named parameters and rebound per
// driver, so the same table code runs on modernc SQLite and pgx. Every
// failure reported by the engine is wrapped with common.ErrStorage;
// missing rows are reported as common.ErrNotFound.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/dbx"
	"github.com/jmoiron/sqlx"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Table is the index table for one kind. S is the kind's stub type; its
// db tags must cover columns.
type Table[S any] struct {
	db      dbx.DBTX
	name    string
	columns []string
	active  string

	selectQuery string
	upsertQuery string
}

// NewTable builds a table accessor. columns[0] must be the primary key;
// active is the WHERE clause that defines the kind's active listing.
func NewTable[S any](db dbx.DBTX, name string, columns []string, active string) *Table[S] {
	t := &Table[S]{db: db, name: name, columns: columns, active: active}

	t.selectQuery = fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), name)

	named := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		named[i] = ":" + c
		if i > 0 {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	t.upsertQuery = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		name, strings.Join(columns, ", "), strings.Join(named, ", "), columns[0], strings.Join(updates, ", "),
	)
	return t
}

func (t *Table[S]) Name() string { return t.name }

// Upsert inserts the stub or overwrites every non-key column of the row with
// the same uuid.
func (t *Table[S]) Upsert(ctx context.Context, stub S) error {
	if _, err := sqlx.NamedExecContext(ctx, t.db, t.upsertQuery, stub); err != nil {
		return common.StorageError("upsert "+t.name, err)
	}
	return nil
}

// Get returns the row with the given uuid, archived or not.
func (t *Table[S]) Get(ctx context.Context, id string) (S, error) {
	var s S
	q := t.db.Rebind(t.selectQuery + " WHERE uuid = ?")
	if err := sqlx.GetContext(ctx, t.db, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, fmt.Errorf("%s %s: %w", t.name, id, common.ErrNotFound)
		}
		return s, common.StorageError("get "+t.name, err)
	}
	return s, nil
}

// ListActive returns rows matching the kind's active predicate.
func (t *Table[S]) ListActive(ctx context.Context) ([]S, error) {
	return t.list(ctx, t.active)
}

// ListAll returns every row that is not archived.
func (t *Table[S]) ListAll(ctx context.Context) ([]S, error) {
	return t.list(ctx, "archived = FALSE")
}

func (t *Table[S]) ListArchived(ctx context.Context) ([]S, error) {
	return t.list(ctx, "archived = TRUE")
}

func (t *Table[S]) list(ctx context.Context, where string, args ...any) ([]S, error) {
	q := t.db.Rebind(fmt.Sprintf("%s WHERE %s ORDER BY uuid", t.selectQuery, where))
	var out []S
	if err := sqlx.SelectContext(ctx, t.db, &out, q, args...); err != nil {
		return nil, common.StorageError("list "+t.name, err)
	}
	return out, nil
}

func (t *Table[S]) SetArchived(ctx context.Context, id string, archived bool) error {
	q := t.db.Rebind(fmt.Sprintf("UPDATE %s SET archived = ? WHERE uuid = ?", t.name))
	res, err := t.db.ExecContext(ctx, q, archived, id)
	if err != nil {
		return common.StorageError("archive "+t.name, err)
	}
	return expectRow(res, t.name, id)
}

func (t *Table[S]) Delete(ctx context.Context, id string) error {
	q := t.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE uuid = ?", t.name))
	res, err := t.db.ExecContext(ctx, q, id)
	if err != nil {
		return common.StorageError("delete "+t.name, err)
	}
	return expectRow(res, t.name, id)
}

func expectRow(res sql.Result, table, id string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return common.StorageError("rows affected "+table, err)
	}
	if ra == 0 {
		return fmt.Errorf("%s %s: %w", table, id, common.ErrNotFound)
	}
	return nil
}
