package repo

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/testutil"
	"github.com/roach88/recordtree/internal/txn"
)

var testEntity = record.MustType("TestEntity")

// newTestRepo opens an in-memory repository with a deterministic clock.
func newTestRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	base := []Option{
		WithBackend(BackendMemory),
		WithClock(clock.Now),
		WithMetrics(txn.NewMetrics(prometheus.NewRegistry())),
	}
	r, err := Open("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func head(t *testing.T, r *Repository) object.Hash {
	t.Helper()
	h, err := r.Head(context.Background())
	require.NoError(t, err)
	return h
}

func mustSave(t *testing.T, r *Repository, rec *record.Record) SaveResult {
	t.Helper()
	res, err := r.Save(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, res.OK, "validation errors: %v", rec.Errors())
	return res
}

func newRecord(t *testing.T, typ *record.Type, id string, attrs map[string]any, blobs map[string]string) *record.Record {
	t.Helper()
	rec := record.New(typ, id)
	require.NoError(t, rec.Merge(attrs))
	for name, data := range blobs {
		require.NoError(t, rec.SetBlob(name, []byte(data)))
	}
	return rec
}

func txnAuthor(name, email string) txn.Author {
	return txn.Author{Name: name, Email: email}
}
