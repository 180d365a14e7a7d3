package backend

import (
	"context"
	"testing"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/filestore/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), &filestore.Config{Provider: filestore.ProviderMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, store)
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpen_Instrumented(t *testing.T) {
	store, err := Open(context.Background(), &filestore.Config{Provider: filestore.ProviderMemory}, prometheus.NewRegistry())
	require.NoError(t, err)

	instrumented, ok := store.(*metrics.Store)
	require.True(t, ok)
	assert.IsType(t, &memstore.Store{}, instrumented.Unwrap())
}

func TestOpen_Invalid(t *testing.T) {
	_, err := Open(context.Background(), nil, nil)
	assert.True(t, errs.IsInvalidOperand(err))

	_, err = Open(context.Background(), &filestore.Config{Provider: "ftp"}, nil)
	assert.True(t, errs.IsInvalidOperand(err))
}
