// Package backend opens the filestore.Store named by a filestore.Config.
//
// Usage:
//
//	store, err := backend.Open(ctx, cfg, prometheus.DefaultRegisterer)
//	if err != nil { ... }
//	defer store.Close()
package backend

import (
	"context"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/filestore/metrics"
	"github.com/koustreak/bucketfs/internal/filestore/minio"
	"github.com/prometheus/client_golang/prometheus"
)

// Open connects to the provider in cfg. When registerer is non-nil the
// returned store is instrumented with Prometheus metrics registered there.
func Open(ctx context.Context, cfg *filestore.Config, registerer prometheus.Registerer) (filestore.Store, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidOperand, "store config is required")
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var store filestore.Store
	switch cfg.Provider {
	case filestore.ProviderMinIO:
		d, err := minio.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = d
	case filestore.ProviderMemory:
		store = memstore.New()
	default:
		return nil, errs.Newf(errs.ErrKindInvalidOperand, "unsupported store provider %q", cfg.Provider)
	}

	if registerer != nil {
		store = metrics.Instrument(store, registerer)
	}
	return store, nil
}
