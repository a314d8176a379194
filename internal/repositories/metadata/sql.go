package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/dmitrijs2005/toastit/internal/dbx"
	"github.com/jmoiron/sqlx"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := sqlx.GetContext(ctx, r.db, &value, r.db.Rebind(`SELECT value FROM metadata WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, common.StorageError(fmt.Sprintf("failed to get metadata[%s]", key), err)
	}
	return value, true, nil
}

func (r *SQLRepository) Set(ctx context.Context, key string, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`), key, value)
	if err != nil {
		return common.StorageError(fmt.Sprintf("failed to set metadata[%s]", key), err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM metadata WHERE key = ?`), key)
	if err != nil {
		return common.StorageError(fmt.Sprintf("failed to delete metadata[%s]", key), err)
	}
	return nil
}

func (r *SQLRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return common.StorageError("failed to clear metadata", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, common.StorageError("failed to list metadata", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, common.StorageError("failed to scan metadata row", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, common.StorageError("failed to iterate metadata rows", err)
	}

	return result, nil
}
