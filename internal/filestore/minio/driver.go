// Package minio provides a MinIO implementation of filestore.Store.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	buckets, err := store.ListBuckets(ctx)
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	region string
}

var _ filestore.Store = (*Driver)(nil)

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, region: cfg.Region}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// --- filestore.Store implementation ---

// Ping verifies the MinIO server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op for MinIO: the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the configured credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	raw, err := d.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]filestore.BucketInfo, len(raw))
	for i, b := range raw {
		buckets[i] = filestore.BucketInfo{
			Name:      b.Name,
			CreatedAt: b.CreationDate,
		}
	}
	return buckets, nil
}

func (d *Driver) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapError(err, fmt.Sprintf("failed to check bucket %q", bucket))
	}
	return ok, nil
}

func (d *Driver) MakeBucket(ctx context.Context, bucket string) error {
	err := d.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{Region: d.region})
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to create bucket %q", bucket))
	}
	return nil
}

func (d *Driver) RemoveBucket(ctx context.Context, bucket string) error {
	if err := d.client.RemoveBucket(ctx, bucket); err != nil {
		return mapError(err, fmt.Sprintf("failed to remove bucket %q", bucket))
	}
	return nil
}

// ListObjects returns objects in bucket that match opts.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	// Stop the SDK's listing goroutine when we break out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listOpts := miniogo.ListObjectsOptions{
		Prefix:       opts.Prefix,
		Recursive:    opts.Recursive,
		WithMetadata: opts.WithMetadata,
	}

	var results []filestore.ObjectInfo
	for obj := range d.client.ListObjects(ctx, bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}

		results = append(results, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
			IsDir:        strings.HasSuffix(obj.Key, "/"),
			Metadata:     obj.UserMetadata,
		})

		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}

	return results, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// GetObject is lazy; Stat issues the request and surfaces NoSuchKey.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{ReadCloser: obj, info: toObjectInfo(stat)}, nil
}

// StatObject returns metadata for the object at key inside bucket
// without downloading its content.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	return toObjectInfo(stat), nil
}

func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	_, err := d.client.PutObject(ctx, bucket, key, r, size, putOptions(opts))
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to put %s/%s", bucket, key))
	}
	return nil
}

func (d *Driver) FPutObject(ctx context.Context, bucket, key, sourcePath string, opts filestore.PutOptions) error {
	_, err := d.client.FPutObject(ctx, bucket, key, sourcePath, putOptions(opts))
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to upload %s to %s/%s", sourcePath, bucket, key))
	}
	return nil
}

func (d *Driver) CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) error {
	_, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("failed to copy %s/%s to %s/%s", srcBucket, srcKey, dstBucket, dstKey))
	}
	return nil
}

func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := d.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, fmt.Sprintf("failed to remove %s/%s", bucket, key))
	}
	return nil
}

// RemoveObjects deletes keys in a single multi-object delete request.
// Per-key failures are collected and reported together.
func (d *Driver) RemoveObjects(ctx context.Context, bucket string, keys []string) error {
	objects := make(chan miniogo.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- miniogo.ObjectInfo{Key: key}
	}
	close(objects)

	var result *multierror.Error
	for rerr := range d.client.RemoveObjects(ctx, bucket, objects, miniogo.RemoveObjectsOptions{}) {
		result = multierror.Append(result, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
	}
	if err := result.ErrorOrNil(); err != nil {
		first := result.Errors[0]
		return errs.Wrap(mapError(first, "").Kind, fmt.Sprintf("failed to remove %d object(s) from %s", len(result.Errors), bucket), err)
	}
	return nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

func toObjectInfo(stat miniogo.ObjectInfo) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
		IsDir:        strings.HasSuffix(stat.Key, "/"),
		Metadata:     stat.UserMetadata,
	}
}

func putOptions(opts filestore.PutOptions) miniogo.PutObjectOptions {
	return miniogo.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}
}
