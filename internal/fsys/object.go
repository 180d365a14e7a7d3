package fsys

import (
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/filestore"
)

// Kind discriminates the two Object variants.
type Kind int

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Object is what Stat returns: either a *File or a *Dir.
type Object interface {
	Kind() Kind
	Name() string
	FullPath() string
	Meta() Metadata

	sealed()
}

// Metadata combines the attributes derived from the store listing with the
// object's custom metadata.
type Metadata struct {
	IsDir        bool
	LastModified time.Time
	Size         int64

	// User holds custom metadata with the store's "X-Amz-Meta-" marker
	// removed and keys lower-cased.
	User map[string]string
}

// File is a regular object with its content.
type File struct {
	Path     string
	Metadata Metadata
	Data     []byte

	name string
}

func (f *File) Kind() Kind       { return KindFile }
func (f *File) Name() string     { return f.name }
func (f *File) FullPath() string { return f.Path }
func (f *File) Meta() Metadata   { return f.Metadata }
func (*File) sealed()            {}

// Dir is a simulated directory: a marker object or a common prefix.
type Dir struct {
	Path     string
	Metadata Metadata

	name string
}

func (d *Dir) Kind() Kind       { return KindDir }
func (d *Dir) Name() string     { return d.name }
func (d *Dir) FullPath() string { return d.Path }
func (d *Dir) Meta() Metadata   { return d.Metadata }
func (*Dir) sealed()            {}

const storeMetaPrefix = "x-amz-meta-"

// userMetadata strips the store's header marker and lower-cases keys.
func userMetadata(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		k = strings.ToLower(k)
		out[strings.TrimPrefix(k, storeMetaPrefix)] = v
	}
	return out
}

func metadataOf(info *filestore.ObjectInfo) Metadata {
	return Metadata{
		IsDir:        info.IsDir,
		LastModified: info.LastModified,
		Size:         info.Size,
		User:         userMetadata(info.Metadata),
	}
}

// epoch stands in for missing timestamps so everything stays sortable.
var epoch = time.Unix(0, 0).UTC()

func orEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return epoch
	}
	return t
}
