package fsys

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/pathref"
)

// MakeDirs creates path and any missing parents, like mkdir -p. The bucket
// is created when absent; below it a single marker object is written, the
// store's prefix grouping makes every ancestor visible. Calling it again on
// an existing directory is a no-op.
func (fs *FS) MakeDirs(ctx context.Context, path string) error {
	ref, err := pathref.ResolveDir(path)
	if err != nil {
		return err
	}
	if ref.IsRoot() {
		return errs.New(errs.ErrKindInvalidOperand, "cannot create / directory")
	}

	exists, err := fs.store.BucketExists(ctx, ref.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := fs.store.MakeBucket(ctx, ref.Bucket); err != nil {
			return err
		}
		fs.log.With().Str("bucket", ref.Bucket).Logger().Debug("bucket created")
	}

	if ref.IsBucket() {
		return nil
	}
	return fs.store.PutObject(ctx, ref.Bucket, ref.Prefix, bytes.NewReader(nil), 0, filestore.PutOptions{})
}

// ListDir returns the names of the entries directly inside the directory
// path, newest first. Sub-directories end in "/". The root lists buckets,
// most recently created first. With onlyFiles, directories are left out.
func (fs *FS) ListDir(ctx context.Context, path string, onlyFiles bool) ([]string, error) {
	ref, err := pathref.ResolveDir(path)
	if err != nil {
		return nil, err
	}

	if ref.IsRoot() {
		if onlyFiles {
			return []string{}, nil
		}
		return fs.listBuckets(ctx)
	}

	entries, err := fs.children(ctx, ref)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if onlyFiles && e.IsDir {
			continue
		}
		names = append(names, strings.TrimPrefix(e.Key, ref.Prefix))
	}
	return names, nil
}

func (fs *FS) listBuckets(ctx context.Context) ([]string, error) {
	buckets, err := fs.store.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return orEpoch(buckets[i].CreatedAt).After(orEpoch(buckets[j].CreatedAt))
	})

	names := make([]string, len(buckets))
	for i, b := range buckets {
		names[i] = b.Name + pathref.Separator
	}
	return names, nil
}

// Exists reports whether path names the root, an existing bucket, an
// object or a directory. Unparseable paths do not exist.
func (fs *FS) Exists(ctx context.Context, path string) (bool, error) {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return false, nil
	}
	return fs.exists(ctx, ref)
}

func (fs *FS) exists(ctx context.Context, ref pathref.Ref) (bool, error) {
	if ref.IsRoot() {
		return true, nil
	}

	ok, err := fs.store.BucketExists(ctx, ref.Bucket)
	if err != nil || !ok {
		return false, err
	}
	if ref.IsBucket() {
		return true, nil
	}

	if _, err := fs.describe(ctx, ref, false); err != nil {
		if errs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether path exists and is a directory.
func (fs *FS) IsDir(ctx context.Context, path string) (bool, error) {
	ref, err := pathref.Resolve(path)
	if err != nil || ref.IsFile() {
		return false, nil
	}
	return fs.exists(ctx, ref)
}
