// Package memstore is an in-memory filestore.Store.
//
// It follows S3 listing semantics closely enough to stand in for MinIO:
// keys are returned in lexical order, delimited listings fold nested keys
// into common-prefix entries, a directory marker equal to the listed prefix
// is returned as a regular object, and custom metadata comes back under the
// "X-Amz-Meta-" header marker.
package memstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

const metaPrefix = "X-Amz-Meta-"

type entry struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
	metadata    map[string]string
}

type bucket struct {
	created time.Time
	objects map[string]*entry
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	last    time.Time
	now     func() time.Time
}

var _ filestore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of creation and modification times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tick returns a timestamp strictly after the previous one so that
// "most recently modified" is always well defined. Caller holds mu.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]filestore.BucketInfo, 0, len(s.buckets))
	for name, b := range s.buckets {
		out = append(out, filestore.BucketInfo{Name: name, CreatedAt: b.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) BucketExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[name]
	return ok, nil
}

func (s *Store) MakeBucket(ctx context.Context, name string) error {
	if err := validBucketName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; ok {
		return errs.Newf(errs.ErrKindStoreFailed, "bucket %q already exists", name)
	}
	s.buckets[name] = &bucket{created: s.tick(), objects: make(map[string]*entry)}
	return nil
}

func (s *Store) RemoveBucket(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "no such bucket %q", name)
	}
	if len(b.objects) > 0 {
		return errs.Newf(errs.ErrKindNotEmpty, "bucket %q is not empty", name)
	}
	delete(s.buckets, name)
	return nil
}

func (s *Store) ListObjects(ctx context.Context, name string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(name)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, opts.Prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var out []filestore.ObjectInfo
	seen := make(map[string]bool)
	for _, key := range keys {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}

		if !opts.Recursive {
			rest := key[len(opts.Prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				common := opts.Prefix + rest[:i+1]
				if !seen[common] {
					seen[common] = true
					out = append(out, filestore.ObjectInfo{Key: common, IsDir: true})
				}
				continue
			}
		}

		info := b.objects[key].info(key)
		if !opts.WithMetadata {
			info.Metadata = nil
		}
		out = append(out, *info)
	}
	return out, nil
}

func (s *Store) GetObject(ctx context.Context, name, key string) (filestore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.object(name, key)
	if err != nil {
		return nil, err
	}
	return &object{Reader: bytes.NewReader(e.data), info: e.info(key)}, nil
}

func (s *Store) StatObject(ctx context.Context, name, key string) (*filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.object(name, key)
	if err != nil {
		return nil, err
	}
	return e.info(key), nil
}

func (s *Store) PutObject(ctx context.Context, name, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	if key == "" {
		return errs.New(errs.ErrKindInvalidPath, "object key must not be empty")
	}

	var data []byte
	var err error
	if size >= 0 {
		data, err = io.ReadAll(io.LimitReader(r, size))
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return errs.Wrap(errs.ErrKindStoreFailed, "failed to read upload body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return errs.Newf(errs.ErrKindStoreFailed, "short upload body: got %d of %d bytes", len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(name)
	if err != nil {
		return err
	}
	b.objects[key] = newEntry(data, opts, s.tick())
	return nil
}

func (s *Store) FPutObject(ctx context.Context, name, key, sourcePath string, opts filestore.PutOptions) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.ErrKindNotFound, "source file missing", err)
		}
		return errs.Wrap(errs.ErrKindStoreFailed, "failed to read source file", err)
	}
	return s.PutObject(ctx, name, key, bytes.NewReader(data), int64(len(data)), opts)
}

func (s *Store) CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.object(srcBucket, srcKey)
	if err != nil {
		return err
	}
	dst, err := s.bucket(dstBucket)
	if err != nil {
		return err
	}

	cp := *src
	cp.data = bytes.Clone(src.data)
	cp.metadata = cloneMap(src.metadata)
	cp.modified = s.tick()
	dst.objects[dstKey] = &cp
	return nil
}

func (s *Store) RemoveObject(ctx context.Context, name, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(name)
	if err != nil {
		return err
	}
	delete(b.objects, key)
	return nil
}

func (s *Store) RemoveObjects(ctx context.Context, name string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(name)
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(b.objects, key)
	}
	return nil
}

func (s *Store) PresignGetURL(ctx context.Context, name, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.object(name, key); err != nil {
		return "", err
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", name, key, int64(ttl.Seconds())), nil
}

// bucket and object expect mu to be held.

func (s *Store) bucket(name string) (*bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such bucket %q", name)
	}
	return b, nil
}

func (s *Store) object(name, key string) (*entry, error) {
	b, err := s.bucket(name)
	if err != nil {
		return nil, err
	}
	e, ok := b.objects[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such key %s/%s", name, key)
	}
	return e, nil
}

func newEntry(data []byte, opts filestore.PutOptions, now time.Time) *entry {
	sum := md5.Sum(data)
	meta := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		meta[metaPrefix+textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &entry{
		data:        data,
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    now,
		metadata:    meta,
	}
}

func (e *entry) info(key string) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(e.data)),
		ContentType:  e.contentType,
		ETag:         e.etag,
		LastModified: e.modified,
		IsDir:        strings.HasSuffix(key, "/"),
		Metadata:     cloneMap(e.metadata),
	}
}

func validBucketName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return errs.Newf(errs.ErrKindInvalidPath, "invalid bucket name %q", name)
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error {
	return nil
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
