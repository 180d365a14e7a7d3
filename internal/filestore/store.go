// Package filestore defines the contract bucketfs needs from an object store.
//
// All providers (MinIO, in-memory, …) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	buckets, err := store.ListBuckets(ctx)
package filestore

import (
	"context"
	"io"
	"time"
)

// Store is the single interface all object storage providers must implement.
// Errors returned are *errs.Error values; missing keys and buckets are
// reported as errs.ErrKindNotFound.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// ListBuckets returns all buckets accessible with the configured credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// BucketExists reports whether bucket exists.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// MakeBucket creates bucket.
	MakeBucket(ctx context.Context, bucket string) error

	// RemoveBucket deletes an empty bucket. A non-empty bucket yields
	// errs.ErrKindNotEmpty.
	RemoveBucket(ctx context.Context, bucket string) error

	// ListObjects returns the objects in bucket that match opts.
	// Virtual directory entries (common prefixes) are included when opts.Recursive is false.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// PutObject uploads size bytes read from r to key inside bucket.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error

	// FPutObject uploads the local file at sourcePath to key inside bucket.
	FPutObject(ctx context.Context, bucket, key, sourcePath string, opts PutOptions) error

	// CopyObject performs a server-side copy of srcBucket/srcKey to dstBucket/dstKey.
	CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) error

	// RemoveObject deletes a single key. Deleting a missing key is not an error.
	RemoveObject(ctx context.Context, bucket, key string) error

	// RemoveObjects deletes keys from bucket in one batch.
	RemoveObjects(ctx context.Context, bucket string, keys []string) error

	// PresignGetURL returns a time-limited URL that allows anyone to download
	// the object at key inside bucket without credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
