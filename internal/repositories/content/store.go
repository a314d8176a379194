// Package content keeps the full JSON record of each entry, one file per
// entry, under <kind>/<yyyy>/<mm>/<uuid>.json.
package content

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dmitrijs2005/toastit/internal/models"
)

// Store loads, saves and deletes content records by path.
//
// Load fails with common.ErrContentCorrupt when the record is missing or
// cannot be decoded. Delete of a missing record is not an error.
type Store interface {
	Save(ctx context.Context, path string, v any) error
	Load(ctx context.Context, path string, v any) error
	Delete(ctx context.Context, path string) error
}

// PathFor returns the content path for an entry of kind k created at
// created. The uuid in the file name keeps paths unique for life.
func PathFor(k models.Kind, created time.Time, id string) string {
	return path.Join(k.Table(), fmt.Sprintf("%04d", created.Year()), fmt.Sprintf("%02d", int(created.Month())), id+".json")
}
