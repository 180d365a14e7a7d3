package fsys

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/pathref"
)

// Stat describes path. Files come back as *File with their content,
// directories as *Dir. Buckets and the root have no object and yield
// InvalidOperand.
func (fs *FS) Stat(ctx context.Context, path string) (Object, error) {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return nil, err
	}
	return fs.describe(ctx, ref, true)
}

// Describe is Stat without downloading file content: a *File comes back
// with nil Data.
func (fs *FS) Describe(ctx context.Context, path string) (Object, error) {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return nil, err
	}
	return fs.describe(ctx, ref, false)
}

func (fs *FS) describe(ctx context.Context, ref pathref.Ref, withData bool) (Object, error) {
	if ref.IsRoot() || ref.IsBucket() {
		return nil, errs.Newf(errs.ErrKindInvalidOperand, "%s: a bucket has no representable object", ref)
	}
	if ref.IsFile() {
		f, err := fs.describeFile(ctx, ref, withData)
		if err != nil {
			return nil, err
		}
		return f, nil
	}

	// Directories are only visible through their parent's listing.
	parent := ref.Parent()
	entries, err := fs.store.ListObjects(ctx, ref.Bucket, filestore.ListOptions{
		Prefix:       parent.Prefix,
		WithMetadata: true,
	})
	if err != nil {
		return nil, notFound(ref, err)
	}
	for i := range entries {
		if entries[i].Key == ref.Key() {
			meta := metadataOf(&entries[i])
			meta.IsDir = true
			return &Dir{Path: ref.Path(), Metadata: meta, name: ref.Base()}, nil
		}
	}
	return nil, notFound(ref, nil)
}

func (fs *FS) describeFile(ctx context.Context, ref pathref.Ref, withData bool) (*File, error) {
	if !withData {
		info, err := fs.store.StatObject(ctx, ref.Bucket, ref.Key())
		if err != nil {
			return nil, notFound(ref, err)
		}
		return &File{Path: ref.Path(), Metadata: metadataOf(info), name: ref.Filename}, nil
	}

	obj, err := fs.store.GetObject(ctx, ref.Bucket, ref.Key())
	if err != nil {
		return nil, notFound(ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStoreFailed, "failed to read "+ref.Path(), err)
	}
	return &File{Path: ref.Path(), Metadata: metadataOf(obj.Info()), Data: data, name: ref.Filename}, nil
}

// notFound rewrites store not-found errors into the filesystem wording.
// A nil cause means the lookup itself came up empty.
func notFound(ref pathref.Ref, cause error) error {
	if cause != nil && !errs.IsNotFound(cause) {
		return cause
	}
	return errs.Wrap(errs.ErrKindNotFound, "cannot access "+ref.Path()+": no such file or directory", cause)
}

// PutData writes data to the file path with optional custom metadata.
func (fs *FS) PutData(ctx context.Context, path string, data []byte, metadata map[string]string) error {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return err
	}
	if ref.IsDir() {
		return errs.Newf(errs.ErrKindInvalidOperand, "cannot write data to directory %s", ref)
	}

	return fs.store.PutObject(ctx, ref.Bucket, ref.Key(), bytes.NewReader(data), int64(len(data)),
		filestore.PutOptions{Metadata: metadata})
}

// PutFile uploads the local file at sourcePath. When path is a directory
// the upload keeps the source's base name.
func (fs *FS) PutFile(ctx context.Context, path, sourcePath string, metadata map[string]string) error {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return err
	}
	if ref.IsRoot() {
		return errs.New(errs.ErrKindInvalidOperand, "cannot upload a file to /")
	}
	if ref.IsDir() {
		if ref, err = ref.Join(filepath.Base(sourcePath)); err != nil {
			return err
		}
	}

	return fs.store.FPutObject(ctx, ref.Bucket, ref.Key(), sourcePath, filestore.PutOptions{Metadata: metadata})
}

// LastObject returns the most recently modified file directly inside the
// directory path, or nil when it holds no files.
func (fs *FS) LastObject(ctx context.Context, path string) (*File, error) {
	ref, err := pathref.ResolveDir(path)
	if err != nil {
		return nil, err
	}

	names, err := fs.ListDir(ctx, path, true)
	if err != nil || len(names) == 0 {
		return nil, err
	}

	latest, err := ref.Join(names[0])
	if err != nil {
		return nil, err
	}
	return fs.describeFile(ctx, latest, true)
}

// PresignURL returns a URL granting time-limited read access to the file path.
func (fs *FS) PresignURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	ref, err := pathref.Resolve(path)
	if err != nil {
		return "", err
	}
	if ref.IsDir() {
		return "", errs.Newf(errs.ErrKindInvalidOperand, "cannot share directory %s", ref)
	}
	url, err := fs.store.PresignGetURL(ctx, ref.Bucket, ref.Key(), ttl)
	if err != nil {
		return "", notFound(ref, err)
	}
	return url, nil
}
