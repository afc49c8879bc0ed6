// Package remote downloads backups from S3-compatible object storage.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	// ErrNotConfigured indicates no bucket was configured.
	ErrNotConfigured = errors.New("remote storage not configured")

	// ErrObjectNotFound indicates the key does not exist in the bucket.
	ErrObjectNotFound = errors.New("remote backup not found")

	// ErrInvalidKey indicates a key with no usable file name.
	ErrInvalidKey = errors.New("invalid object key")
)

// Config holds the S3 connection settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// ObjectGetter is the subset of the S3 client the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher downloads backup objects into a local directory.
type Fetcher struct {
	client ObjectGetter
	bucket string
	logger *slog.Logger
}

// New builds a Fetcher from static credentials. A custom endpoint switches
// the client to path-style addressing, as MinIO and most self-hosted stores
// expect.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client ObjectGetter, bucket string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, bucket: bucket, logger: logger}
}

// Fetch downloads key into dir and returns the local path. The file appears
// only once fully written.
func (f *Fetcher) Fetch(ctx context.Context, key, dir string) (string, error) {
	name := path.Base(key)
	if key == "" || name == "." || name == "/" || name == ".." {
		return "", ErrInvalidKey
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, out.Body)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("rename download: %w", err)
	}

	f.logger.Info("remote backup downloaded", "bucket", f.bucket, "key", key, "path", dest, "size", n)
	return dest, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
