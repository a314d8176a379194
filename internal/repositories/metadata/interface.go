// Package metadata is a small key/value table for bookkeeping that does not
// belong to any entry, such as the scheduler's per-kind watermarks.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns ok == false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
