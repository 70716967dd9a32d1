// Package storage provides the object storage that holds source directories:
// the local filesystem or an S3 bucket.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts the store source directories are read from.
// Object paths always use forward slashes.
type ObjectStorage interface {
	// Upload copies a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to localPath, creating parent directories.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists reports whether objectPath exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under prefix, sorted.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// LocalPather is implemented by stores whose objects already live on the
// local filesystem and can be opened in place.
type LocalPather interface {
	LocalPath(objectPath string) string
}
