// Package metrics instruments a filestore.Store with Prometheus metrics.
//
// Every store call is counted by operation and outcome, timed, and failures
// are counted again by error kind.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	store = metrics.Instrument(store, reg)
package metrics

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "bucketfs"
	subsystem = "store"
)

// Collector holds the store metrics.
type Collector struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
	bytesWritten      prometheus.Counter
}

// NewCollector creates the store metrics and registers them with registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func NewCollector(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Collector{
		operationCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Total number of object store calls by operation and status",
		}, []string{"operation", "status"}),

		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of object store calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"operation"}),

		errorCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of failed object store calls by error kind",
		}, []string{"operation", "kind"}),

		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "written_bytes_total",
			Help:      "Total bytes uploaded through PutObject",
		}),
	}
}

// RecordOperation records one store call.
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		c.errorCounter.With(prometheus.Labels{
			"operation": operation,
			"kind":      errs.KindOf(err).String(),
		}).Inc()
	}

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())
}

// Store is a filestore.Store that records every call on a Collector.
type Store struct {
	next      filestore.Store
	collector *Collector
}

var _ filestore.Store = (*Store)(nil)

// Instrument wraps store so that its calls are recorded on metrics
// registered with registerer.
func Instrument(store filestore.Store, registerer prometheus.Registerer) *Store {
	return &Store{next: store, collector: NewCollector(registerer)}
}

// Unwrap returns the instrumented store.
func (s *Store) Unwrap() filestore.Store {
	return s.next
}

func (s *Store) observe(operation string, start time.Time, err error) {
	s.collector.RecordOperation(operation, time.Since(start), err)
}

func (s *Store) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	s.observe("ping", start, err)
	return err
}

func (s *Store) Close() error {
	return s.next.Close()
}

func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	start := time.Now()
	buckets, err := s.next.ListBuckets(ctx)
	s.observe("list_buckets", start, err)
	return buckets, err
}

func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	start := time.Now()
	ok, err := s.next.BucketExists(ctx, bucket)
	s.observe("bucket_exists", start, err)
	return ok, err
}

func (s *Store) MakeBucket(ctx context.Context, bucket string) error {
	start := time.Now()
	err := s.next.MakeBucket(ctx, bucket)
	s.observe("make_bucket", start, err)
	return err
}

func (s *Store) RemoveBucket(ctx context.Context, bucket string) error {
	start := time.Now()
	err := s.next.RemoveBucket(ctx, bucket)
	s.observe("remove_bucket", start, err)
	return err
}

func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	start := time.Now()
	objects, err := s.next.ListObjects(ctx, bucket, opts)
	s.observe("list_objects", start, err)
	return objects, err
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	start := time.Now()
	obj, err := s.next.GetObject(ctx, bucket, key)
	s.observe("get_object", start, err)
	return obj, err
}

func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	start := time.Now()
	info, err := s.next.StatObject(ctx, bucket, key)
	s.observe("stat_object", start, err)
	return info, err
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	start := time.Now()
	err := s.next.PutObject(ctx, bucket, key, r, size, opts)
	s.observe("put_object", start, err)
	if err == nil && size > 0 {
		s.collector.bytesWritten.Add(float64(size))
	}
	return err
}

func (s *Store) FPutObject(ctx context.Context, bucket, key, sourcePath string, opts filestore.PutOptions) error {
	start := time.Now()
	err := s.next.FPutObject(ctx, bucket, key, sourcePath, opts)
	s.observe("fput_object", start, err)
	return err
}

func (s *Store) CopyObject(ctx context.Context, dstBucket, dstKey, srcBucket, srcKey string) error {
	start := time.Now()
	err := s.next.CopyObject(ctx, dstBucket, dstKey, srcBucket, srcKey)
	s.observe("copy_object", start, err)
	return err
}

func (s *Store) RemoveObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := s.next.RemoveObject(ctx, bucket, key)
	s.observe("remove_object", start, err)
	return err
}

func (s *Store) RemoveObjects(ctx context.Context, bucket string, keys []string) error {
	start := time.Now()
	err := s.next.RemoveObjects(ctx, bucket, keys)
	s.observe("remove_objects", start, err)
	return err
}

func (s *Store) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	url, err := s.next.PresignGetURL(ctx, bucket, key, ttl)
	s.observe("presign_get_url", start, err)
	return url, err
}
