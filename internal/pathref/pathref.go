// Package pathref turns absolute bucketfs paths into structured references.
//
// A path has the shape
//
//	/bucket/prefix.../filename
//
// A trailing "/" (or the bare root "/") denotes a directory; no trailing
// separator denotes a file. Repeated separators are collapsed before
// parsing. Resolution is pure: no I/O happens here.
package pathref

import (
	"strings"
	"unicode/utf8"

	"github.com/koustreak/bucketfs/internal/errs"
)

// Separator is the only path separator bucketfs understands.
const Separator = "/"

// Root is the path of the store root, the parent of every bucket.
const Root = Separator

// Ref is a resolved path. The zero Ref is the store root.
type Ref struct {
	Bucket   string
	Prefix   string // directory part of the key, empty or ending in "/"
	Filename string // last key segment, empty for directories
}

// Normalize collapses runs of "/" into one.
func Normalize(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prev := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Resolve parses path into a Ref. It fails with errs.ErrKindInvalidPath when
// path is not absolute, is not valid UTF-8, or has no "/<bucket>/" head.
func Resolve(path string) (Ref, error) {
	p := Normalize(path)
	if p == Root {
		return Ref{}, nil
	}
	if !utf8.ValidString(p) {
		return Ref{}, errs.Newf(errs.ErrKindInvalidPath, "%q is not a valid path: invalid encoding", path)
	}
	if !strings.HasPrefix(p, Separator) {
		return Ref{}, errs.Newf(errs.ErrKindInvalidPath, "%q is not a valid path: must be absolute", path)
	}

	bucket, rest, ok := strings.Cut(p[1:], Separator)
	if !ok || bucket == "" {
		return Ref{}, errs.Newf(errs.ErrKindInvalidPath, "%q is not a valid path: expected /<bucket>/", path)
	}

	ref := Ref{Bucket: bucket}
	if i := strings.LastIndex(rest, Separator); i >= 0 {
		ref.Prefix, ref.Filename = rest[:i+1], rest[i+1:]
	} else {
		ref.Filename = rest
	}
	return ref, nil
}

// ResolveDir resolves path and rejects file references with
// errs.ErrKindNotADirectory: directory arguments must end with "/".
func ResolveDir(path string) (Ref, error) {
	ref, err := Resolve(path)
	if err != nil {
		return Ref{}, err
	}
	if ref.IsFile() {
		return Ref{}, errs.Newf(errs.ErrKindNotADirectory,
			"%s is not a valid directory path: must be absolute and end with /", path)
	}
	return ref, nil
}

func (r Ref) IsRoot() bool {
	return r == Ref{}
}

// IsBucket reports whether r names a bucket itself, e.g. "/photos/".
func (r Ref) IsBucket() bool {
	return !r.IsRoot() && r.Key() == ""
}

func (r Ref) IsDir() bool {
	return r.Filename == ""
}

func (r Ref) IsFile() bool {
	return !r.IsDir()
}

// Key is the bucket-relative store key.
func (r Ref) Key() string {
	return r.Prefix + r.Filename
}

// Path renders r back into its canonical absolute form.
func (r Ref) Path() string {
	if r.IsRoot() {
		return Root
	}
	return Separator + r.Bucket + Separator + r.Key()
}

func (r Ref) String() string {
	return r.Path()
}

// Dir returns the directory containing r; for a directory that is r itself.
func (r Ref) Dir() Ref {
	return Ref{Bucket: r.Bucket, Prefix: r.Prefix}
}

// Parent returns the directory one level above r. The parent of a bucket is
// the root and the root is its own parent.
func (r Ref) Parent() Ref {
	switch {
	case r.IsRoot():
		return r
	case r.IsFile():
		return r.Dir()
	case r.IsBucket():
		return Ref{}
	}
	trimmed := strings.TrimSuffix(r.Prefix, Separator)
	i := strings.LastIndex(trimmed, Separator)
	return Ref{Bucket: r.Bucket, Prefix: trimmed[:i+1]}
}

// Base is the last path element: the file name, "dir/" for a directory,
// "bucket/" for a bucket and "/" for the root.
func (r Ref) Base() string {
	switch {
	case r.IsRoot():
		return Root
	case r.IsFile():
		return r.Filename
	case r.IsBucket():
		return r.Bucket + Separator
	}
	return strings.TrimPrefix(r.Prefix, r.Parent().Prefix)
}

// Join resolves name relative to the directory of r. name may itself contain
// separators; a trailing one yields a directory.
func (r Ref) Join(name string) (Ref, error) {
	if r.IsRoot() {
		return Resolve(Root + name)
	}
	return Resolve(r.Dir().Path() + name)
}

// InferDestination picks the target of a file copy or move. An explicit file
// destination wins; a directory destination keeps the source's file name.
func InferDestination(src, dst Ref) (Ref, error) {
	if !src.IsFile() {
		return Ref{}, errs.Newf(errs.ErrKindInvalidOperand, "source %s must be a file", src)
	}
	if dst.IsFile() {
		return dst, nil
	}
	if dst.IsRoot() {
		return Ref{}, errs.Newf(errs.ErrKindInvalidOperand, "cannot place file %s at the root", src)
	}
	return Ref{Bucket: dst.Bucket, Prefix: dst.Prefix, Filename: src.Filename}, nil
}

// FromKey builds the reference of a store key inside bucket. Keys ending in
// "/" give directory references.
func FromKey(bucket, key string) Ref {
	i := strings.LastIndex(key, Separator)
	return Ref{Bucket: bucket, Prefix: key[:i+1], Filename: key[i+1:]}
}
