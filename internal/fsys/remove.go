package fsys

import (
	"context"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/pathref"
)

// RemoveDir deletes the directory path. Without recursive the directory
// must be empty. On the root, recursive means deleting every bucket.
//
// Files are deleted with one batch call per directory. Marker objects go
// last, deepest directory first, and a bucket reference finally removes the
// bucket itself.
func (fs *FS) RemoveDir(ctx context.Context, path string, recursive bool) error {
	ref, err := pathref.ResolveDir(path)
	if err != nil {
		return err
	}

	if ref.IsRoot() {
		if recursive {
			return fs.Truncate(ctx)
		}
		return errs.New(errs.ErrKindNotEmpty, "cannot delete non-empty directory /")
	}

	var visited []pathref.Ref
	err = fs.walk(ctx, ref, func(ctx context.Context, l level) error {
		if !l.empty() && !recursive {
			return errs.Newf(errs.ErrKindNotEmpty, "cannot delete non-empty directory %s", l.dir)
		}
		if len(l.files) > 0 {
			if err := fs.store.RemoveObjects(ctx, l.dir.Bucket, l.files); err != nil {
				return err
			}
		}
		visited = append(visited, l.dir)
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(visited) - 1; i >= 0; i-- {
		dir := visited[i]
		if dir.IsBucket() {
			continue
		}
		if err := fs.store.RemoveObject(ctx, dir.Bucket, dir.Prefix); err != nil {
			return err
		}
	}

	if ref.IsBucket() {
		if err := fs.store.RemoveBucket(ctx, ref.Bucket); err != nil {
			if errs.IsNotEmpty(err) {
				// Someone wrote into the bucket while it was being drained.
				return errs.Wrap(errs.ErrKindNotEmpty, "cannot delete non-empty directory "+ref.Path(), err)
			}
			return err
		}
	}

	fs.log.With().
		Str("path", ref.Path()).
		Int("dirs", len(visited)).
		Bool("recursive", recursive).
		Logger().
		Debug("directory removed")
	return nil
}

// Remove deletes path, which may be a file or a directory. Directories
// follow RemoveDir; a directory path that does not exist is NotFound.
// Removing a missing file is not an error.
func (fs *FS) Remove(ctx context.Context, path string, recursive bool) error {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return err
	}

	if ref.IsDir() {
		ok, err := fs.exists(ctx, ref)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Newf(errs.ErrKindNotFound, "cannot remove %s: no such file or directory", path)
		}
		return fs.RemoveDir(ctx, ref.Path(), recursive)
	}

	return fs.store.RemoveObject(ctx, ref.Bucket, ref.Key())
}

// Truncate deletes every bucket along with its content.
func (fs *FS) Truncate(ctx context.Context) error {
	buckets, err := fs.listBuckets(ctx)
	if err != nil {
		return err
	}
	for _, name := range buckets {
		if err := fs.RemoveDir(ctx, pathref.Root+name, true); err != nil {
			return err
		}
	}
	return nil
}
