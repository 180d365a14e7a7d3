package pathref

import (
	"testing"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustResolve is Resolve for test paths known to be valid.
func mustResolve(path string) Ref {
	ref, err := Resolve(path)
	if err != nil {
		panic(err)
	}
	return ref
}

func TestResolve(t *testing.T) {
	tests := []struct {
		path string
		want Ref
	}{
		{"/", Ref{}},
		{"///", Ref{}},
		{"/photos/", Ref{Bucket: "photos"}},
		{"/photos/cat.jpg", Ref{Bucket: "photos", Filename: "cat.jpg"}},
		{"/photos/a", Ref{Bucket: "photos", Filename: "a"}},
		{"/photos/2024/", Ref{Bucket: "photos", Prefix: "2024/"}},
		{"/photos/2024/jan/cat.jpg", Ref{Bucket: "photos", Prefix: "2024/jan/", Filename: "cat.jpg"}},
		{"//photos///2024//cat.jpg", Ref{Bucket: "photos", Prefix: "2024/", Filename: "cat.jpg"}},
		{"/photos/.hidden/x", Ref{Bucket: "photos", Prefix: ".hidden/", Filename: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Invalid(t *testing.T) {
	for _, path := range []string{"", "photos/x", "/photos", "/\xff\xfe/x"} {
		t.Run(path, func(t *testing.T) {
			_, err := Resolve(path)
			assert.True(t, errs.IsInvalidPath(err), "got %v", err)
		})
	}
}

func TestResolve_NormalizationIdempotent(t *testing.T) {
	for _, path := range []string{"/", "/b/", "//b//x", "/b/a//b///c", "/b/dir//"} {
		a, err := Resolve(path)
		require.NoError(t, err)
		b, err := Resolve(Normalize(path))
		require.NoError(t, err)
		assert.Equal(t, a, b, path)
		assert.Equal(t, Normalize(path), Normalize(Normalize(path)))
	}
}

func TestOnlyRootIsRoot(t *testing.T) {
	assert.True(t, mustResolve("/").IsRoot())
	for _, path := range []string{"/b/", "/b/x", "/b/d/"} {
		assert.False(t, mustResolve(path).IsRoot(), path)
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		path                   string
		root, bucket, dir, file bool
		key                    string
	}{
		{"/", true, false, true, false, ""},
		{"/b/", false, true, true, false, ""},
		{"/b/d/", false, false, true, false, "d/"},
		{"/b/d/f.txt", false, false, false, true, "d/f.txt"},
		{"/b/f.txt", false, false, false, true, "f.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ref := mustResolve(tt.path)
			assert.Equal(t, tt.root, ref.IsRoot())
			assert.Equal(t, tt.bucket, ref.IsBucket())
			assert.Equal(t, tt.dir, ref.IsDir())
			assert.Equal(t, tt.file, ref.IsFile())
			assert.Equal(t, tt.key, ref.Key())
			assert.Equal(t, tt.path, ref.Path())
		})
	}
}

func TestResolveDir(t *testing.T) {
	ref, err := ResolveDir("/b/d/")
	require.NoError(t, err)
	assert.Equal(t, "d/", ref.Prefix)

	_, err = ResolveDir("/b/d")
	assert.True(t, errs.IsNotADirectory(err))
	assert.True(t, errs.IsInvalidOperand(err))

	_, err = ResolveDir("b/d/")
	assert.True(t, errs.IsInvalidPath(err))
}

func TestParentAndBase(t *testing.T) {
	tests := []struct {
		path, parent, base string
	}{
		{"/", "/", "/"},
		{"/b/", "/", "b/"},
		{"/b/d/", "/b/", "d/"},
		{"/b/d/e/", "/b/d/", "e/"},
		{"/b/d/f.txt", "/b/d/", "f.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ref := mustResolve(tt.path)
			assert.Equal(t, tt.parent, ref.Parent().Path())
			assert.Equal(t, tt.base, ref.Base())
		})
	}
}

func TestJoin(t *testing.T) {
	got, err := mustResolve("/b/d/").Join("sub/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "/b/d/sub/x.txt", got.Path())

	got, err = mustResolve("/b/d/f.txt").Join("g.txt")
	require.NoError(t, err)
	assert.Equal(t, "/b/d/g.txt", got.Path())

	got, err = Ref{}.Join("b/")
	require.NoError(t, err)
	assert.True(t, got.IsBucket())
}

func TestInferDestination(t *testing.T) {
	src := mustResolve("/foo/bar1/baz")

	t.Run("directory destination keeps source name", func(t *testing.T) {
		got, err := InferDestination(src, mustResolve("/foo/bar2/"))
		require.NoError(t, err)
		assert.Equal(t, "/foo/bar2/baz", got.Path())
		assert.Equal(t, src.Filename, got.Filename)
		assert.Equal(t, "bar2/", got.Prefix)
	})

	t.Run("bucket destination", func(t *testing.T) {
		got, err := InferDestination(src, mustResolve("/other/"))
		require.NoError(t, err)
		assert.Equal(t, "/other/baz", got.Path())
	})

	t.Run("file destination is unchanged", func(t *testing.T) {
		dst := mustResolve("/foo/bar2/baz2")
		got, err := InferDestination(src, dst)
		require.NoError(t, err)
		assert.Equal(t, dst, got)
	})

	t.Run("directory source", func(t *testing.T) {
		_, err := InferDestination(mustResolve("/foo/bar1/"), mustResolve("/foo/bar2/"))
		assert.True(t, errs.IsInvalidOperand(err))
	})

	t.Run("root destination", func(t *testing.T) {
		_, err := InferDestination(src, Ref{})
		assert.True(t, errs.IsInvalidOperand(err))
	})
}
