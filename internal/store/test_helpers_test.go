package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/object"
)

// createTestStore opens an object store in a per-test directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// putBlobs stores each payload as a blob in one batch and returns the hashes.
func putBlobs(t *testing.T, s *Store, payloads ...string) []object.Hash {
	t.Helper()
	objs := make([]object.Object, 0, len(payloads))
	hashes := make([]object.Hash, 0, len(payloads))
	for _, p := range payloads {
		o := object.NewBlob([]byte(p))
		objs = append(objs, o)
		hashes = append(hashes, o.Hash)
	}
	require.NoError(t, s.Put(context.Background(), objs...))
	return hashes
}
