package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Mirror copies every object under a prefix into a local directory, keeping
// the layout below the prefix. Downloads run in parallel.
type Mirror struct {
	storage     ObjectStorage
	concurrency int
}

// MirrorResult contains the outcome of a mirror.
type MirrorResult struct {
	// LocalPaths maps object path to the file it was written to.
	LocalPaths map[string]string
	// Errors maps object path to its download error.
	Errors map[string]error
}

// NewMirror creates a mirror over storage. concurrency below 1 means 1.
func NewMirror(storage ObjectStorage, concurrency int) *Mirror {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Mirror{storage: storage, concurrency: concurrency}
}

// Pull downloads all objects under prefix into destDir. The returned error is
// non-nil when listing fails or any object could not be downloaded; the
// result still reports what succeeded.
func (m *Mirror) Pull(ctx context.Context, prefix, destDir string) (*MirrorResult, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	objects, err := m.storage.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	result := &MirrorResult{
		LocalPaths: make(map[string]string, len(objects)),
		Errors:     make(map[string]error),
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = semaphore.NewWeighted(int64(m.concurrency))
	)
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj, prefix)
		// Reject keys that would escape destDir.
		if rel == "" || strings.HasPrefix(path.Clean(rel), "..") {
			result.Errors[obj] = fmt.Errorf("object %q is outside prefix %q", obj, prefix)
			continue
		}
		local := filepath.Join(destDir, filepath.FromSlash(path.Clean(rel)))

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[obj] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(obj, local string) {
			defer sem.Release(1)
			defer wg.Done()

			err := m.storage.Download(ctx, obj, local)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[obj] = err
				return
			}
			result.LocalPaths[obj] = local
		}(obj, local)
	}
	wg.Wait()

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: %d of %d objects under %s", ErrDownloadFailed, len(result.Errors), len(objects), prefix)
	}
	return result, nil
}

// EnsureEmptyDir removes dir if present and recreates it.
func EnsureEmptyDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
