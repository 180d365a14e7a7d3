// Package fsys is the tree operations engine of bucketfs.
//
// It gives a flat bucket/key store filesystem-shaped operations: mkdir -p,
// ls, rm [-r], cp [-r], mv and stat. Directories do not exist in the store;
// they are simulated with zero-length marker objects whose key ends in "/"
// and with the common-prefix grouping of delimited listings.
//
// Operations are built from many independent store calls and are not
// transactional. A failure midway through a recursive delete or copy leaves
// the work done so far in place.
//
// Usage:
//
//	fs := fsys.New(store, fsys.WithLogger(log))
//	if err := fs.MakeDirs(ctx, "/photos/2024/"); err != nil { ... }
//	names, err := fs.ListDir(ctx, "/photos/", false)
package fsys

import (
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/logger"
)

const defaultConcurrency = 8

// FS implements directory semantics on top of a filestore.Store.
// It holds no state besides its collaborators and is safe for concurrent
// use to the extent the store is.
type FS struct {
	store       filestore.Store
	log         *logger.Logger
	concurrency int
}

// Option configures an FS.
type Option func(*FS)

// WithLogger sets the logger used for traversal diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(fs *FS) {
		if l != nil {
			fs.log = l
		}
	}
}

// WithConcurrency bounds how many object copies run in parallel during a
// recursive copy. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(fs *FS) {
		if n < 1 {
			n = 1
		}
		fs.concurrency = n
	}
}

// New returns an FS backed by store.
func New(store filestore.Store, opts ...Option) *FS {
	fs := &FS{
		store:       store,
		log:         logger.Nop(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Store returns the underlying object store.
func (fs *FS) Store() filestore.Store {
	return fs.store
}
