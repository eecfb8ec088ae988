package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/errs"
)

func TestDefault_NotInitialized(t *testing.T) {
	restore := Swap(nil)
	t.Cleanup(restore)
	ctx := context.Background()

	_, err := Default()
	assert.ErrorIs(t, err, errs.ErrNotInitialized)

	_, err = Find(ctx, testEntity, "foo")
	assert.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = Save(ctx, newRecord(t, testEntity, "foo", map[string]any{"a": 1}, nil))
	assert.ErrorIs(t, err, errs.ErrNotInitialized)
	_, err = DeleteAll(ctx, testEntity)
	assert.ErrorIs(t, err, errs.ErrNotInitialized)
}

func TestInitialize(t *testing.T) {
	restore := Swap(nil)
	t.Cleanup(restore)
	root := t.TempDir()

	r, err := Initialize(root)
	require.NoError(t, err)
	t.Cleanup(func() { Teardown() })
	assert.Equal(t, root, r.Root())

	again, err := Initialize(filepath.Join(root, ".", ""))
	require.NoError(t, err)
	assert.Same(t, r, again)

	_, err = Initialize(t.TempDir())
	assert.ErrorIs(t, err, errs.ErrAlreadyInitialized)

	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, r, got)

	require.NoError(t, Teardown())
	_, err = Default()
	assert.ErrorIs(t, err, errs.ErrNotInitialized)
	require.NoError(t, Teardown())
}

func TestPackageFunctions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	restore := Swap(r)
	t.Cleanup(restore)

	rec, err := Create(ctx, testEntity, Fields{ID: "foo", Attributes: map[string]any{"one": 1}})
	require.NoError(t, err)
	assert.True(t, rec.IsPersisted())

	ok, err := Exists(ctx, testEntity, "foo")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rec.Set("two", 2))
	res, err := SaveOrFail(ctx, rec)
	require.NoError(t, err)
	assert.True(t, res.Committed)

	found, err := Find(ctx, testEntity, "foo")
	require.NoError(t, err)
	assert.Len(t, found.Attributes, 2)

	all, err := FindAll(ctx, testEntity)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = Delete(ctx, testEntity, "foo")
	require.NoError(t, err)
	ok, err = Exists(ctx, testEntity, "foo")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Save(ctx, newRecord(t, testEntity, "bar", map[string]any{"a": 1}, nil))
	require.NoError(t, err)
	_, err = DeleteAll(ctx, testEntity)
	require.NoError(t, err)
	all, err = FindAll(ctx, testEntity)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSwap_Restores(t *testing.T) {
	a := newTestRepo(t)
	b := newTestRepo(t)

	outer := Swap(a)
	defer outer()

	inner := Swap(b)
	got, err := Default()
	require.NoError(t, err)
	assert.Same(t, b, got)

	inner()
	got, err = Default()
	require.NoError(t, err)
	assert.Same(t, a, got)
}
