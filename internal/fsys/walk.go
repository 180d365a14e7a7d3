package fsys

import (
	"context"
	"sort"

	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/pathref"
)

// level is one directory reached by walk, with its immediate children
// split into file keys and sub-directories.
type level struct {
	dir   pathref.Ref
	files []string
	dirs  []pathref.Ref
}

func (l level) empty() bool {
	return len(l.files) == 0 && len(l.dirs) == 0
}

// visitFunc is called once per directory, parents before children.
type visitFunc func(ctx context.Context, l level) error

// walk visits root and every directory below it breadth-first, using an
// explicit worklist. It stops at the first error from the store or visit.
func (fs *FS) walk(ctx context.Context, root pathref.Ref, visit visitFunc) error {
	queue := []pathref.Ref{root}

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := fs.children(ctx, dir)
		if err != nil {
			return err
		}

		l := level{dir: dir}
		for _, e := range entries {
			if e.IsDir {
				l.dirs = append(l.dirs, pathref.FromKey(dir.Bucket, e.Key))
			} else {
				l.files = append(l.files, e.Key)
			}
		}

		fs.log.DebugWith("walk", map[string]any{
			"dir":   dir.Path(),
			"files": len(l.files),
			"dirs":  len(l.dirs),
		})

		if err := visit(ctx, l); err != nil {
			return err
		}
		queue = append(queue, l.dirs...)
	}
	return nil
}

// children lists the entries one level below dir, newest first. The
// directory's own marker object is not one of its children.
func (fs *FS) children(ctx context.Context, dir pathref.Ref) ([]filestore.ObjectInfo, error) {
	raw, err := fs.store.ListObjects(ctx, dir.Bucket, filestore.ListOptions{Prefix: dir.Prefix})
	if err != nil {
		return nil, err
	}

	entries := raw[:0]
	for _, e := range raw {
		if e.Key == dir.Prefix {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return orEpoch(entries[i].LastModified).After(orEpoch(entries[j].LastModified))
	})
	return entries, nil
}
