package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/toastit/internal/common"
	"github.com/peterbourgon/diskv/v3"
)

// DiskStore keeps records as files below a base directory. Writes go
// through a temp dir and a rename, so readers never see partial files.
type DiskStore struct {
	d        *diskv.Diskv
	basePath string
}

// NewDiskStore opens a store rooted at basePath. cacheSize bounds diskv's
// in-memory cache in bytes; 0 disables it. Load never serves from it.
func NewDiskStore(basePath string, cacheSize uint64) *DiskStore {
	return &DiskStore{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			TempDir:           filepath.Join(basePath, ".tmp"),
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      cacheSize,
			PathPerm:          0o755,
			FilePerm:          0o644,
		}),
		basePath: basePath,
	}
}

func (s *DiskStore) BasePath() string { return s.basePath }

func (s *DiskStore) Save(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := s.d.Write(path, data); err != nil {
		return common.StorageError("write "+path, err)
	}
	return nil
}

func (s *DiskStore) Load(ctx context.Context, path string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The cache would keep serving a file that was removed behind our back,
	// so reads always go to disk.
	rc, err := s.d.ReadStream(path, true)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", common.ErrContentCorrupt, path)
		}
		return common.StorageError("read "+path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return common.StorageError("read "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrContentCorrupt, path, err)
	}
	return nil
}

func (s *DiskStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.d.Erase(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return common.StorageError("erase "+path, err)
	}
	return nil
}

// Keys are slash-separated content paths; the last element is the file name.
func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return strings.Join(append(append([]string{}, pathKey.Path...), pathKey.FileName), "/")
}
