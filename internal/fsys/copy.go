package fsys

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/pathref"
	"golang.org/x/sync/errgroup"
)

// copyTask is one object to copy, found while walking the source tree.
type copyTask struct {
	from pathref.Ref
	to   pathref.Ref
}

// Copy copies from to to, like cp [-r].
//
// A file copied to a directory keeps its name; a file path destination
// names the copy explicitly. A directory requires recursive and is copied
// into to, or into to/<name>/ when to is an existing directory.
func (fs *FS) Copy(ctx context.Context, from, to string, recursive bool) error {
	src, dst, err := fs.resolvePair(ctx, from, to, recursive)
	if err != nil {
		return err
	}
	return fs.copy(ctx, src, dst)
}

func (fs *FS) copy(ctx context.Context, src, dst pathref.Ref) error {
	if src.IsDir() {
		return fs.copyRecursive(ctx, src, dst)
	}

	fs.log.DebugWith("copy object", map[string]any{"from": src.Path(), "to": dst.Path()})
	return fs.store.CopyObject(ctx, dst.Bucket, dst.Key(), src.Bucket, src.Key())
}

// resolvePair parses a copy/move operand pair and resolves the true
// destination.
func (fs *FS) resolvePair(ctx context.Context, from, to string, recursive bool) (pathref.Ref, pathref.Ref, error) {
	src, err := pathref.Resolve(from)
	if err != nil {
		return pathref.Ref{}, pathref.Ref{}, err
	}
	target, err := pathref.Resolve(to)
	if err != nil {
		return pathref.Ref{}, pathref.Ref{}, err
	}

	if src.IsRoot() {
		return pathref.Ref{}, pathref.Ref{}, errs.New(errs.ErrKindInvalidOperand, "cannot copy /")
	}
	if src.IsDir() && !recursive {
		return pathref.Ref{}, pathref.Ref{}, errs.Newf(errs.ErrKindInvalidOperand,
			"copying directory %s must be done recursively", src)
	}

	if src.IsDir() {
		ok, err := fs.exists(ctx, src)
		if err != nil {
			return pathref.Ref{}, pathref.Ref{}, err
		}
		if !ok {
			return pathref.Ref{}, pathref.Ref{}, errs.Newf(errs.ErrKindNotFound,
				"cannot copy %s: no such file or directory", src)
		}
	}

	dst, err := fs.destination(ctx, src, target)
	if err != nil {
		return pathref.Ref{}, pathref.Ref{}, err
	}
	if src.IsFile() && dst == src {
		return pathref.Ref{}, pathref.Ref{}, errs.Newf(errs.ErrKindInvalidOperand,
			"%s and %s are the same file", src, dst)
	}
	if src.IsDir() && src.Bucket == dst.Bucket && strings.HasPrefix(dst.Prefix, src.Prefix) {
		return pathref.Ref{}, pathref.Ref{}, errs.Newf(errs.ErrKindInvalidOperand,
			"cannot copy directory %s into itself (%s)", src, dst)
	}
	return src, dst, nil
}

func (fs *FS) destination(ctx context.Context, src, dst pathref.Ref) (pathref.Ref, error) {
	if src.IsFile() {
		return pathref.InferDestination(src, dst)
	}

	if dst.IsFile() {
		return pathref.Ref{}, errs.Newf(errs.ErrKindInvalidOperand,
			"cannot copy directory %s onto file %s", src, dst)
	}
	if dst.IsRoot() {
		return pathref.Ref{}, errs.Newf(errs.ErrKindInvalidOperand, "cannot copy directory %s to /", src)
	}

	ok, err := fs.exists(ctx, dst)
	if err != nil {
		return pathref.Ref{}, err
	}
	if ok {
		return dst.Join(src.Base())
	}
	return dst, nil
}

// copyRecursive mirrors the tree below src into dst. Directories without
// sub-directories are recreated at the destination first, so empty ones
// survive and the destination bucket exists before any object is copied.
// The object copies then run in parallel.
func (fs *FS) copyRecursive(ctx context.Context, src, dst pathref.Ref) error {
	var tasks []copyTask
	err := fs.walk(ctx, src, func(ctx context.Context, l level) error {
		for _, key := range l.files {
			suffix := strings.TrimPrefix(key, src.Prefix)
			to, err := dst.Join(suffix)
			if err != nil {
				return err
			}
			tasks = append(tasks, copyTask{from: pathref.FromKey(src.Bucket, key), to: to})
		}

		if len(l.dirs) == 0 {
			mirror := dst.Path() + strings.TrimPrefix(l.dir.Prefix, src.Prefix)
			return fs.MakeDirs(ctx, mirror)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fs.log.DebugWith("copying objects", map[string]any{
		"from":  src.Path(),
		"to":    dst.Path(),
		"count": len(tasks),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fs.concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			return fs.store.CopyObject(gctx, task.to.Bucket, task.to.Key(), task.from.Bucket, task.from.Key())
		})
	}
	return g.Wait()
}

// Move moves from to to, like mv: a Copy followed by removal of the
// source. Whatever the copy's outcome, the source is removed only when both
// it and the destination exist afterwards. A destination that existed
// before the move also satisfies that check, and so does a directory copy
// that failed partway: its leaf directories are created before any object
// is copied, so the source tree is removed including files that never
// reached the destination.
func (fs *FS) Move(ctx context.Context, from, to string, recursive bool) error {
	src, dst, err := fs.resolvePair(ctx, from, to, recursive)
	if err != nil {
		return err
	}

	copyErr := fs.copy(ctx, src, dst)

	var cleanupErr error
	srcOK, err := fs.exists(ctx, src)
	if err != nil {
		cleanupErr = err
	} else if srcOK {
		dstOK, err := fs.exists(ctx, dst)
		switch {
		case err != nil:
			cleanupErr = err
		case dstOK:
			cleanupErr = fs.Remove(ctx, src.Path(), recursive)
		}
	}

	switch {
	case copyErr == nil:
		return cleanupErr
	case cleanupErr == nil:
		return copyErr
	}
	return multierror.Append(copyErr, cleanupErr)
}
