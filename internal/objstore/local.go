package objstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"quarry/internal/domain"
)

// Compile-time check.
var _ Store = (*LocalStore)(nil)

// LocalStore lists dataset files on the server's own filesystem.
type LocalStore struct{}

// NewLocalStore creates a LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// List walks the directory tree under location and returns regular files
// whose location-relative path matches pattern.
func (s *LocalStore) List(ctx context.Context, location, pattern string) ([]domain.StorageObject, error) {
	root := filepath.Clean(location)
	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.ErrValidation("location %q is not readable: %v", location, err)
	}
	if !info.IsDir() {
		return nil, domain.ErrValidation("location %q is not a directory", location)
	}

	var objects []domain.StorageObject
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if !MatchPattern(pattern, filepath.ToSlash(rel)) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, domain.StorageObject{Path: p, SizeBytes: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", location, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

// PresignDownload returns the path unchanged. Local files carry no expiry and
// are only meaningful on the server host.
func (s *LocalStore) PresignDownload(_ context.Context, path string, _ time.Duration) (string, error) {
	return path, nil
}
