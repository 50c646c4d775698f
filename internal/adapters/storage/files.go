// Package storage keeps derived assets and maintenance reports on a filesystem
// abstracted by afero, so jobs can run against an in-memory tree in tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrUnsafePath is returned for names that escape the storage root.
var ErrUnsafePath = errors.New("path escapes storage root")

// AssetStore implements ports.AssetStore under a fixed root directory.
type AssetStore struct {
	fs   afero.Fs
	root string
}

// NewAssetStore returns a store rooted at root on fsys.
func NewAssetStore(fsys afero.Fs, root string) *AssetStore {
	return &AssetStore{fs: fsys, root: filepath.Clean(root)}
}

// Root is the base directory every returned path is relative to.
func (s *AssetStore) Root() string {
	return s.root
}

// Write stores data at name, a slash-separated path relative to the root, and
// returns that relative path.
func (s *AssetStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := cleanRelative(name)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := s.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, full, data, 0o644); err != nil {
		return "", fmt.Errorf("write asset %s: %w", rel, err)
	}
	return rel, nil
}

// PurgeOlderThan removes every regular file under the root whose modification
// time is before cutoff. Referenced files are not spared. A missing root is not an error.
func (s *AssetStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if _, err := s.fs.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	var stale []string
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.Mode().IsRegular() && info.ModTime().Before(cutoff) {
			stale = append(stale, p)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", s.root, err)
	}

	removed := 0
	var errs []error
	for _, p := range stale {
		if err := s.fs.Remove(p); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Remove deletes the file at rel. A missing file is not an error.
func (s *AssetStore) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanRelative(rel)
	if err != nil {
		return err
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := s.fs.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset %s: %w", clean, err)
	}
	return nil
}

func cleanRelative(name string) (string, error) {
	rel := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if rel == "." || path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return rel, nil
}
