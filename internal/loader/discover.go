package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/internal/index"
	"github.com/arkilian/trackport/internal/storage"
)

// DefaultSourceMarker is the substring that identifies source directories.
const DefaultSourceMarker = "RawData"

// Source is one top-level source directory in object storage.
type Source struct {
	// Name is the directory name, used as the metrics and log label.
	Name string
	// Prefix is the object path prefix of the directory, with a trailing slash.
	Prefix string
}

// Discover lists the top-level directories whose name contains marker and that
// hold an index file directly below them. Results are sorted by name.
func Discover(ctx context.Context, store storage.ObjectStorage, marker string) ([]Source, error) {
	if marker == "" {
		marker = DefaultSourceMarker
	}

	objects, err := store.ListObjects(ctx, "")
	if err != nil {
		return nil, apperrors.NewStoreError(apperrors.CodeStoreUnavailable, "failed to list sources", err)
	}

	seen := make(map[string]bool)
	var sources []Source
	for _, obj := range objects {
		dir, file, ok := strings.Cut(obj, "/")
		if !ok || file != index.FileName || seen[dir] || !strings.Contains(dir, marker) {
			continue
		}
		seen[dir] = true
		sources = append(sources, Source{Name: dir, Prefix: dir + "/"})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// Materialize returns a local directory holding the source's index. Stores
// that live on the local filesystem are used in place; anything else is
// mirrored into workDir/<source name>, replacing an earlier copy.
func Materialize(ctx context.Context, store storage.ObjectStorage, src Source, workDir string, concurrency int) (string, error) {
	if lp, ok := store.(storage.LocalPather); ok {
		return lp.LocalPath(src.Name), nil
	}

	dest := filepath.Join(workDir, src.Name)
	if err := storage.EnsureEmptyDir(dest); err != nil {
		return "", fmt.Errorf("loader: failed to prepare %s: %w", dest, err)
	}
	if _, err := storage.NewMirror(store, concurrency).Pull(ctx, src.Prefix, dest); err != nil {
		return "", apperrors.NewStoreError(apperrors.CodeStoreUnavailable,
			fmt.Sprintf("failed to fetch source %s", src.Name), err)
	}
	return dest, nil
}
