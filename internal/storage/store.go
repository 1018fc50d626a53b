// Package storage provides the object store used for all SageWorks bucket
// artifacts: raw data, offline feature stores, model bundles, inference
// captures, stored dataframes, pipeline definitions, and logs.
//
// The shipped implementations are an S3-compatible client (minio-go) and a
// local filesystem store used for development and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested object or bucket does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo holds metadata for a stored object.
type ObjectInfo struct {
	Key          string
	SizeBytes    int64
	LastModified time.Time
}

// ObjectStore abstracts the minimal S3 operations SageWorks needs.
type ObjectStore interface {
	// Ping verifies connectivity to the store.
	Ping(ctx context.Context) error

	// EnsureBucket creates the bucket if it does not exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject writes an object, overwriting any existing one.
	PutObject(ctx context.Context, bucket, key string, data []byte) error

	// GetObject reads an object. Returns ErrNotFound if missing.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// StatObject returns object metadata. Returns ErrNotFound if missing.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// ListPrefix lists objects under a key prefix, sorted by key.
	ListPrefix(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// RemoveObject deletes an object. Deleting a missing object is not an error.
	RemoveObject(ctx context.Context, bucket, key string) error

	// RemovePrefix deletes every object under a key prefix.
	RemovePrefix(ctx context.Context, bucket, prefix string) error
}

// Config holds connection settings for the object store.
type Config struct {
	// EndpointURL is the store endpoint (http://host:9000 for S3-compatible
	// stores, file:///path or empty for the local store).
	EndpointURL string

	// AccessKeyID and SecretAccessKey authenticate against S3-compatible stores.
	AccessKeyID     string
	SecretAccessKey string

	// Region is passed through to the S3 client.
	Region string

	// UseSSL forces TLS regardless of the endpoint scheme.
	UseSSL bool

	// LocalRoot is the directory backing the local store.
	LocalRoot string
}

// Open creates an object store from config. http/https endpoints get the S3
// client; anything else falls back to the local filesystem store.
func Open(cfg Config) (ObjectStore, error) {
	if strings.HasPrefix(cfg.EndpointURL, "http://") || strings.HasPrefix(cfg.EndpointURL, "https://") {
		return NewS3Store(cfg)
	}
	return NewLocalStore(cfg.LocalRoot), nil
}

// ParseURI splits an "s3://bucket/key" URI into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in uri: %q", uri)
	}
	return bucket, key, nil
}

// URI renders a bucket/key pair as an s3:// URI.
func URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
