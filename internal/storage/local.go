package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// LocalStorage serves objects from a directory tree. Object paths map to
// files below the base path.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage opens the tree rooted at basePath, creating it if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// LocalPath returns the file backing objectPath. Sources on local storage
// are opened in place through it.
func (l *LocalStorage) LocalPath(objectPath string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectPath))
}

func (l *LocalStorage) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := copyFile(localPath, l.LocalPath(objectPath)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUploadFailed, objectPath, err)
	}
	return nil
}

func (l *LocalStorage) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := copyFile(l.LocalPath(objectPath), localPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, objectPath, err)
	}
	return nil
}

// Exists reports whether objectPath is a regular file. Directories are not
// objects.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(l.LocalPath(objectPath))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	default:
		return info.Mode().IsRegular(), nil
	}
}

// ListObjects walks the files under prefix. A missing prefix lists nothing.
func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		objects = append(objects, filepath.ToSlash(rel))
		return nil
	}
	if err := filepath.WalkDir(l.LocalPath(prefix), walk); err != nil {
		return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
	}

	sort.Strings(objects)
	return objects, nil
}

// copyFile copies src to dst through a temporary sibling of dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp := dst + ".part"
	if err := writeFile(tmp, in); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
