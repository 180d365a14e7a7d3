package fsys

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/pathref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T, opts ...Option) (*FS, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return New(store, opts...), store
}

// mustPut writes body at path, creating the bucket first.
func mustPut(t *testing.T, fs *FS, path, body string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fs.MakeDirs(ctx, bucketOf(t, path)))
	require.NoError(t, fs.PutData(ctx, path, []byte(body), nil))
}

// bucketOf returns the bucket directory of path, e.g. "/b/" for "/b/x/y.txt".
func bucketOf(t *testing.T, path string) string {
	t.Helper()
	ref, err := pathref.Resolve(path)
	require.NoError(t, err)
	return pathref.Root + ref.Bucket + pathref.Separator
}

func mustMkdir(t *testing.T, fs *FS, path string) {
	t.Helper()
	require.NoError(t, fs.MakeDirs(context.Background(), path))
}

func mustExist(t *testing.T, fs *FS, path string, want bool) {
	t.Helper()
	ok, err := fs.Exists(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, want, ok, "exists(%s)", path)
}

func mustList(t *testing.T, fs *FS, path string, onlyFiles bool) []string {
	t.Helper()
	names, err := fs.ListDir(context.Background(), path, onlyFiles)
	require.NoError(t, err)
	return names
}

func TestMakeDirs(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)

	t.Run("root is rejected", func(t *testing.T) {
		assert.True(t, errs.IsInvalidOperand(fs.MakeDirs(ctx, "/")))
	})

	t.Run("file path is rejected", func(t *testing.T) {
		err := fs.MakeDirs(ctx, "/b/file")
		assert.True(t, errs.IsNotADirectory(err))
		assert.True(t, errs.IsInvalidOperand(err))
	})

	t.Run("bucket only", func(t *testing.T) {
		mustMkdir(t, fs, "/only/")
		mustExist(t, fs, "/only/", true)
		assert.Empty(t, mustList(t, fs, "/only/", false))
	})

	t.Run("nested path materializes every ancestor", func(t *testing.T) {
		mustMkdir(t, fs, "/b/x/y/z/")

		assert.Equal(t, []string{"x/"}, mustList(t, fs, "/b/", false))
		assert.Equal(t, []string{"y/"}, mustList(t, fs, "/b/x/", false))
		assert.Equal(t, []string{"z/"}, mustList(t, fs, "/b/x/y/", false))
		assert.Empty(t, mustList(t, fs, "/b/x/y/z/", false))
		mustExist(t, fs, "/b/x/y/", true)
	})

	t.Run("idempotent", func(t *testing.T) {
		mustMkdir(t, fs, "/b/again/")
		before := mustList(t, fs, "/b/", false)
		mustMkdir(t, fs, "/b/again/")
		assert.ElementsMatch(t, before, mustList(t, fs, "/b/", false))
	})
}

func TestListDir(t *testing.T) {
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/d/a.txt", "a")
	mustPut(t, fs, "/b/d/b.txt", "b")
	mustMkdir(t, fs, "/b/d/sub/")
	mustPut(t, fs, "/b/d/c.txt", "c")

	assert.Equal(t, []string{"c.txt", "b.txt", "a.txt", "sub/"}, mustList(t, fs, "/b/d/", false))
	assert.Equal(t, []string{"c.txt", "b.txt", "a.txt"}, mustList(t, fs, "/b/d/", true))

	_, err := fs.ListDir(context.Background(), "/b/d", false)
	assert.True(t, errs.IsNotADirectory(err))

	_, err = fs.ListDir(context.Background(), "/missing/", false)
	assert.True(t, errs.IsNotFound(err))
}

func TestListDir_MarkerIsNotAChild(t *testing.T) {
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/b/d/")
	mustPut(t, fs, "/b/d/f.txt", "x")

	assert.Equal(t, []string{"f.txt"}, mustList(t, fs, "/b/d/", false))
}

func TestListDir_Root(t *testing.T) {
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/first/")
	mustMkdir(t, fs, "/second/")
	mustMkdir(t, fs, "/third/")

	assert.Equal(t, []string{"third/", "second/", "first/"}, mustList(t, fs, "/", false))
	assert.Empty(t, mustList(t, fs, "/", true))
}

// zeroTimes hides creation and modification times like some S3 gateways do.
type zeroTimes struct {
	*memstore.Store
}

func (z zeroTimes) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	buckets, err := z.Store.ListBuckets(ctx)
	for i := range buckets {
		buckets[i].CreatedAt = time.Time{}
	}
	return buckets, err
}

func TestListDir_MissingTimestampsKeepStoreOrder(t *testing.T) {
	store := memstore.New()
	fs := New(zeroTimes{store})
	mustMkdir(t, fs, "/bbb/")
	mustMkdir(t, fs, "/aaa/")

	assert.Equal(t, []string{"aaa/", "bbb/"}, mustList(t, fs, "/", false))
}

func TestExistsAndIsDir(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/d/f.txt", "x")

	tests := []struct {
		path        string
		exists, dir bool
	}{
		{"/", true, true},
		{"/b/", true, true},
		{"/nope/", false, false},
		{"/nope/f.txt", false, false},
		{"/b/d/", true, true},
		{"/b/d/f.txt", true, false},
		{"/b/d/g.txt", false, false},
		{"/b/e/", false, false},
		{"not-absolute", false, false},
		{"/b", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ok, err := fs.Exists(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, ok)

			dir, err := fs.IsDir(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestRemoveDir(t *testing.T) {
	ctx := context.Background()

	t.Run("empty directory without recursive", func(t *testing.T) {
		fs, _ := newFS(t)
		mustMkdir(t, fs, "/b/empty/")

		require.NoError(t, fs.RemoveDir(ctx, "/b/empty/", false))
		mustExist(t, fs, "/b/empty/", false)
		mustExist(t, fs, "/b/", true)
	})

	t.Run("non-empty directory without recursive", func(t *testing.T) {
		fs, _ := newFS(t)
		mustPut(t, fs, "/b/full/f.txt", "x")

		assert.True(t, errs.IsNotEmpty(fs.RemoveDir(ctx, "/b/full/", false)))
		mustExist(t, fs, "/b/full/f.txt", true)
	})

	t.Run("recursive removes markers of every level", func(t *testing.T) {
		fs, _ := newFS(t)
		mustMkdir(t, fs, "/b/a/")
		mustMkdir(t, fs, "/b/a/b/")
		mustMkdir(t, fs, "/b/a/b/c/")
		mustMkdir(t, fs, "/b/a/empty/")
		mustPut(t, fs, "/b/a/1.txt", "1")
		mustPut(t, fs, "/b/a/b/2.txt", "2")
		mustPut(t, fs, "/b/a/b/c/3.txt", "3")
		mustPut(t, fs, "/b/keep.txt", "k")

		require.NoError(t, fs.RemoveDir(ctx, "/b/a/", true))
		assert.Equal(t, []string{"keep.txt"}, mustList(t, fs, "/b/", false))
	})

	t.Run("bucket", func(t *testing.T) {
		fs, _ := newFS(t)
		mustPut(t, fs, "/b/d/f.txt", "x")
		mustPut(t, fs, "/other/f.txt", "x")

		assert.True(t, errs.IsNotEmpty(fs.RemoveDir(ctx, "/b/", false)))
		require.NoError(t, fs.RemoveDir(ctx, "/b/", true))
		assert.Equal(t, []string{"other/"}, mustList(t, fs, "/", false))
	})

	t.Run("root", func(t *testing.T) {
		fs, _ := newFS(t)
		mustPut(t, fs, "/one/f.txt", "x")
		mustPut(t, fs, "/two/d/f.txt", "x")

		assert.True(t, errs.IsNotEmpty(fs.RemoveDir(ctx, "/", false)))
		require.NoError(t, fs.RemoveDir(ctx, "/", true))
		assert.Empty(t, mustList(t, fs, "/", false))
	})

	t.Run("file path", func(t *testing.T) {
		fs, _ := newFS(t)
		assert.True(t, errs.IsNotADirectory(fs.RemoveDir(ctx, "/b/f.txt", true)))
	})
}

// racingStore lets a writer slip in right before the bucket is removed.
type racingStore struct {
	*memstore.Store
}

func (r racingStore) RemoveBucket(ctx context.Context, bucket string) error {
	_ = r.Store.PutObject(ctx, bucket, "late.txt", bytes.NewReader(nil), 0, filestore.PutOptions{})
	return r.Store.RemoveBucket(ctx, bucket)
}

func TestRemoveDir_LateWriterIsNotEmpty(t *testing.T) {
	fs := New(racingStore{memstore.New()})
	mustPut(t, fs, "/b/f.txt", "x")

	err := fs.RemoveDir(context.Background(), "/b/", true)
	assert.True(t, errs.IsNotEmpty(err))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/f.txt", "x")
	mustPut(t, fs, "/b/d/g.txt", "x")

	require.NoError(t, fs.Remove(ctx, "/b/f.txt", false))
	mustExist(t, fs, "/b/f.txt", false)

	require.NoError(t, fs.Remove(ctx, "/b/f.txt", false), "removing a missing file is not an error")

	assert.True(t, errs.IsNotEmpty(fs.Remove(ctx, "/b/d/", false)))
	require.NoError(t, fs.Remove(ctx, "/b/d/", true))
	mustExist(t, fs, "/b/d/", false)

	assert.True(t, errs.IsNotFound(fs.Remove(ctx, "/b/nope/", true)))
	assert.True(t, errs.IsInvalidPath(fs.Remove(ctx, "b/f.txt", false)))
}

func TestTruncate(t *testing.T) {
	fs, _ := newFS(t)
	mustPut(t, fs, "/one/a/b/c.txt", "x")
	mustMkdir(t, fs, "/two/")

	require.NoError(t, fs.Truncate(context.Background()))
	assert.Empty(t, mustList(t, fs, "/", false))
}

func TestPutDataStatRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	data := []byte("hello, bucket")
	mustMkdir(t, fs, "/b/")

	require.NoError(t, fs.PutData(ctx, "/b/dir/f.txt", data, map[string]string{"Owner": "ada"}))

	obj, err := fs.Stat(ctx, "/b/dir/f.txt")
	require.NoError(t, err)
	require.Equal(t, KindFile, obj.Kind())

	f := obj.(*File)
	assert.Equal(t, data, f.Data)
	assert.Equal(t, "f.txt", f.Name())
	assert.Equal(t, "/b/dir/f.txt", f.FullPath())
	assert.False(t, f.Meta().IsDir)
	assert.Equal(t, int64(len(data)), f.Meta().Size)
	assert.False(t, f.Meta().LastModified.IsZero())
	assert.Equal(t, map[string]string{"owner": "ada"}, f.Meta().User)
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/f.txt", "12345")

	obj, err := fs.Describe(ctx, "/b/f.txt")
	require.NoError(t, err)
	f := obj.(*File)
	assert.Nil(t, f.Data)
	assert.Equal(t, int64(5), f.Meta().Size)

	_, err = fs.Describe(ctx, "/b/nope.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestPutData_Invalid(t *testing.T) {
	fs, _ := newFS(t)
	err := fs.PutData(context.Background(), "/b/dir/", []byte("x"), nil)
	assert.True(t, errs.IsInvalidOperand(err))

	err = fs.PutData(context.Background(), "/nobucket/f.txt", []byte("x"), nil)
	assert.True(t, errs.IsNotFound(err), "writes never create buckets")
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/b/dir/sub/")

	t.Run("directory", func(t *testing.T) {
		obj, err := fs.Stat(ctx, "/b/dir/sub/")
		require.NoError(t, err)
		require.Equal(t, KindDir, obj.Kind())

		d := obj.(*Dir)
		assert.Equal(t, "sub/", d.Name())
		assert.Equal(t, "/b/dir/sub/", d.FullPath())
		assert.True(t, d.Meta().IsDir)
	})

	t.Run("top-level directory", func(t *testing.T) {
		obj, err := fs.Stat(ctx, "/b/dir/")
		require.NoError(t, err)
		assert.Equal(t, "dir/", obj.Name())
	})

	t.Run("bucket", func(t *testing.T) {
		_, err := fs.Stat(ctx, "/b/")
		assert.True(t, errs.IsInvalidOperand(err))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := fs.Stat(ctx, "/b/nope.txt")
		assert.True(t, errs.IsNotFound(err))
		_, err = fs.Stat(ctx, "/b/nope/")
		assert.True(t, errs.IsNotFound(err))
		_, err = fs.Stat(ctx, "/nobucket/f.txt")
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestCopy_Recursive(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/src/a.txt", "a")
	mustPut(t, fs, "/b/src/sub/b.txt", "b")
	mustMkdir(t, fs, "/b/src/empty/")

	require.NoError(t, fs.Copy(ctx, "/b/src/", "/b/dst/", true))

	assert.ElementsMatch(t, []string{"a.txt", "sub/", "empty/"}, mustList(t, fs, "/b/dst/", false))
	assert.Equal(t, []string{"b.txt"}, mustList(t, fs, "/b/dst/sub/", false))
	mustExist(t, fs, "/b/dst/empty/", true)

	obj, err := fs.Stat(ctx, "/b/dst/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), obj.(*File).Data)

	mustExist(t, fs, "/b/src/sub/b.txt", true)
}

func TestCopy_RecursiveIntoExistingDirectoryNests(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/src/a.txt", "a")
	mustMkdir(t, fs, "/b/dst/")

	require.NoError(t, fs.Copy(ctx, "/b/src/", "/b/dst/", true))
	assert.Equal(t, []string{"src/"}, mustList(t, fs, "/b/dst/", false))
	mustExist(t, fs, "/b/dst/src/a.txt", true)
}

func TestCopy_RecursiveAcrossBuckets(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	for i := 0; i < 20; i++ {
		mustPut(t, fs, "/b/src/f"+string(rune('a'+i))+".txt", "x")
	}

	require.NoError(t, fs.Copy(ctx, "/b/src/", "/other/", true))
	assert.Len(t, mustList(t, fs, "/other/", true), 20)
}

func TestCopy_File(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/x/f.txt", "payload")
	mustMkdir(t, fs, "/b/y/")

	require.NoError(t, fs.Copy(ctx, "/b/x/f.txt", "/b/y/", false))
	mustExist(t, fs, "/b/y/f.txt", true)

	require.NoError(t, fs.Copy(ctx, "/b/x/f.txt", "/b/y/renamed.txt", false))
	mustExist(t, fs, "/b/y/renamed.txt", true)

	mustExist(t, fs, "/b/x/f.txt", true)
}

func TestCopy_Invalid(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/src/a.txt", "a")
	mustPut(t, fs, "/b/file.txt", "f")

	tests := []struct {
		name      string
		from, to  string
		recursive bool
	}{
		{"directory without recursive", "/b/src/", "/b/dst/", false},
		{"directory onto file", "/b/src/", "/b/file.txt", true},
		{"directory into itself", "/b/src/", "/b/src/inner/", true},
		{"bucket into itself", "/b/", "/b/copy/", true},
		{"root", "/", "/b/", true},
		{"file to root", "/b/file.txt", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.Copy(ctx, tt.from, tt.to, tt.recursive)
			assert.True(t, errs.IsInvalidOperand(err), "got %v", err)
		})
	}

	assert.True(t, errs.IsNotFound(fs.Copy(ctx, "/b/missing.txt", "/b/x.txt", false)))
}

func TestMove_File(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/x.txt", "original")

	require.NoError(t, fs.Move(ctx, "/b/x.txt", "/b/y/", false))

	mustExist(t, fs, "/b/x.txt", false)
	obj, err := fs.Stat(ctx, "/b/y/x.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), obj.(*File).Data)
}

func TestMove_Directory(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/src/a.txt", "a")
	mustPut(t, fs, "/b/src/sub/b.txt", "b")

	require.NoError(t, fs.Move(ctx, "/b/src/", "/b/dst/", true))

	mustExist(t, fs, "/b/src/", false)
	mustExist(t, fs, "/b/dst/a.txt", true)
	mustExist(t, fs, "/b/dst/sub/b.txt", true)
}

// failingCopy refuses every server-side copy.
type failingCopy struct {
	*memstore.Store
}

func (failingCopy) CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) error {
	return errs.New(errs.ErrKindPermissionDenied, "copy refused")
}

func TestMove_FailedCopyKeepsSource(t *testing.T) {
	ctx := context.Background()
	fs := New(failingCopy{memstore.New()})
	mustPut(t, fs, "/b/x.txt", "original")

	err := fs.Move(ctx, "/b/x.txt", "/b/y/", false)
	assert.True(t, errs.IsPermissionDenied(err))
	mustExist(t, fs, "/b/x.txt", true)
	mustExist(t, fs, "/b/y/x.txt", false)
}

func TestMove_OntoItselfKeepsFile(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/x.txt", "original")

	for _, to := range []string{"/b/", "/b/x.txt", "/b//x.txt"} {
		t.Run(to, func(t *testing.T) {
			err := fs.Move(ctx, "/b/x.txt", to, false)
			assert.True(t, errs.IsInvalidOperand(err), "got %v", err)
			assert.True(t, errs.IsInvalidOperand(fs.Copy(ctx, "/b/x.txt", to, false)))

			obj, err := fs.Stat(ctx, "/b/x.txt")
			require.NoError(t, err)
			assert.Equal(t, []byte("original"), obj.(*File).Data)
		})
	}
}

func TestCopy_MissingDirectory(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/b/")

	err := fs.Copy(ctx, "/b/nope/", "/b/dst/", true)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
	mustExist(t, fs, "/b/dst/", false)

	err = fs.Move(ctx, "/b/nope/", "/b/dst/", true)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
	mustExist(t, fs, "/b/dst/", false)

	err = fs.Copy(ctx, "/missing/", "/b/dst/", true)
	assert.True(t, errs.IsNotFound(err), "got %v", err)
}

func TestLastObject(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/b/d/")

	f, err := fs.LastObject(ctx, "/b/d/")
	require.NoError(t, err)
	assert.Nil(t, f)

	mustPut(t, fs, "/b/d/old.txt", "old")
	mustPut(t, fs, "/b/d/new.txt", "new")
	mustMkdir(t, fs, "/b/d/later/")

	f, err = fs.LastObject(ctx, "/b/d/")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "new.txt", f.Name())
	assert.Equal(t, []byte("new"), f.Data)

	_, err = fs.LastObject(ctx, "/b/d/new.txt")
	assert.True(t, errs.IsNotADirectory(err))

	f, err = fs.LastObject(ctx, "/")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPutFile(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustMkdir(t, fs, "/b/up/")

	src := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n"), 0o600))

	require.NoError(t, fs.PutFile(ctx, "/b/up/", src, map[string]string{"Source": "local"}))
	obj, err := fs.Stat(ctx, "/b/up/report.csv")
	require.NoError(t, err)
	assert.Equal(t, "local", obj.Meta().User["source"])

	require.NoError(t, fs.PutFile(ctx, "/b/up/renamed.csv", src, nil))
	mustExist(t, fs, "/b/up/renamed.csv", true)

	assert.True(t, errs.IsInvalidOperand(fs.PutFile(ctx, "/", src, nil)))
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	fs, _ := newFS(t)
	mustPut(t, fs, "/b/f.txt", "x")

	url, err := fs.PresignURL(ctx, "/b/f.txt", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "b/f.txt"))

	_, err = fs.PresignURL(ctx, "/b/", time.Hour)
	assert.True(t, errs.IsInvalidOperand(err))

	_, err = fs.PresignURL(ctx, "/b/missing", time.Hour)
	assert.True(t, errs.IsNotFound(err))
}

func TestUserMetadata(t *testing.T) {
	got := userMetadata(map[string]string{
		"X-Amz-Meta-Owner": "ada",
		"x-amz-meta-team":  "core",
		"Content-Language": "en",
	})
	assert.Equal(t, map[string]string{"owner": "ada", "team": "core", "content-language": "en"}, got)
}

func TestWithConcurrency(t *testing.T) {
	fs, _ := newFS(t, WithConcurrency(0))
	assert.Equal(t, 1, fs.concurrency)

	fs, _ = newFS(t, WithConcurrency(4), WithLogger(nil))
	assert.Equal(t, 4, fs.concurrency)
	assert.NotNil(t, fs.log)
}
