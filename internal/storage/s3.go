package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	defaultS3Attempts = 4
	defaultS3Backoff  = 100 * time.Millisecond
)

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Region string

	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint string

	// UsePathStyle is required by most S3-compatible servers.
	UsePathStyle bool

	// Prefix is prepended to every object key.
	Prefix string

	// Attempts bounds tries per request. Zero means 4.
	Attempts int
}

// S3Storage reads and writes source objects in a bucket. Object paths are
// relative to the configured key prefix.
type S3Storage struct {
	client   *s3.Client
	bucket   string
	prefix   string
	attempts int
	backoff  time.Duration
}

// NewS3Storage builds a client from the default AWS credential chain.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StorageWithClient(client, bucket, cfg), nil
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Storage {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultS3Attempts
	}
	return &S3Storage{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		attempts: attempts,
		backoff:  defaultS3Backoff,
	}
}

func (s *S3Storage) key(objectPath string) string {
	return s.prefix + strings.TrimPrefix(objectPath, "/")
}

// Upload puts a local file at objectPath.
func (s *S3Storage) Upload(ctx context.Context, localPath, objectPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	err = s.do(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(objectPath)),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUploadFailed, objectPath, err)
	}
	return nil
}

// Download writes objectPath to localPath. The file is written under a
// temporary name and renamed, so a failed transfer leaves nothing behind.
// A body that breaks off mid-transfer is fetched again from the start.
func (s *S3Storage) Download(ctx context.Context, objectPath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	tmp := localPath + ".part"
	defer os.Remove(tmp)

	err := s.do(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(objectPath)),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return writeFile(tmp, resp.Body)
	})
	if errors.Is(err, ErrObjectNotFound) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, objectPath, err)
	}

	if err := os.Rename(tmp, localPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether objectPath exists.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	err := s.do(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(objectPath)),
		})
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrObjectNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ListObjects returns the object paths under prefix, relative to the
// storage prefix and sorted. Each page request is retried on its own.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var objects []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := s.do(ctx, func() error {
			var err error
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, strings.TrimPrefix(key, s.prefix))
		}
	}

	sort.Strings(objects)
	return objects, nil
}

// do runs op up to s.attempts times, doubling the pause after each failure.
// A missing object ends the loop at once as ErrObjectNotFound.
func (s *S3Storage) do(ctx context.Context, op func() error) error {
	pause := s.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = op(); err == nil {
			return nil
		}
		if isNotFound(err) {
			return ErrObjectNotFound
		}
		if attempt >= s.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		pause *= 2
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
