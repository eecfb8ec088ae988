package txn

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/snapshot"
	"github.com/roach88/recordtree/internal/testutil"
)

func newTestCommitter(t *testing.T, s object.Store) *Committer {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	return New(s,
		WithClock(clock.Now),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
}

func resolve(t *testing.T, s object.Store) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.Resolve(context.Background(), s)
	require.NoError(t, err)
	return snap
}

func TestCommit_FirstCommit(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Writes: []diff.Write{
			{Path: "test_entities/foo/attributes.yml", Data: []byte("name: foo\n")},
		}},
		Author:  Author{Name: "ada", Email: "ada@example.com"},
		Message: "save test_entities/foo",
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.True(t, res.Parent.IsZero())

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Commit, head)

	info, err := object.ReadCommit(ctx, s, head)
	require.NoError(t, err)
	assert.Equal(t, "ada", info.Author)
	assert.Equal(t, "ada@example.com", info.Email)
	assert.Equal(t, testutil.Epoch.Unix(), info.Time)
	assert.Equal(t, "save test_entities/foo", info.Message)

	data, err := resolve(t, s).Read(ctx, "test_entities/foo/attributes.yml")
	require.NoError(t, err)
	assert.Equal(t, "name: foo\n", string(data))

	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().CommitsTotal))
}

func TestCommit_EmptyDiffIsNoop(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	base := testutil.CommitFiles(t, s, map[string][]byte{"a/b": []byte("x")})
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{Base: resolve(t, s)})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, base, res.Commit)

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, head)
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().NoopsTotal))
}

func TestCommit_IdenticalWriteIsNoop(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	base := testutil.CommitFiles(t, s, map[string][]byte{"a/b": []byte("x")})
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Writes: []diff.Write{{Path: "a/b", Data: []byte("x")}}},
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, base, res.Commit)
}

func TestCommit_RemovalPrunesEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	testutil.CommitFiles(t, s, map[string][]byte{
		"test_entities/foo/attributes.yml": []byte("name: foo\n"),
		"test_entities/foo/avatar":         []byte("png"),
		"others/bar/attributes.yml":        []byte("x: 1\n"),
	})
	c := newTestCommitter(t, s)

	_, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Removals: []string{
			"test_entities/foo/attributes.yml",
			"test_entities/foo/avatar",
		}},
	})
	require.NoError(t, err)

	snap := resolve(t, s)
	ok, err := snap.Exists(ctx, "test_entities")
	require.NoError(t, err)
	assert.False(t, ok, "empty type directory should be pruned")

	ok, err = snap.Exists(ctx, "others/bar/attributes.yml")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommit_RemovingEverythingLeavesEmptyRoot(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	testutil.CommitFiles(t, s, map[string][]byte{"t/a/attributes.yml": []byte("a: 1\n")})
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Removals: []string{"t/a/attributes.yml"}},
	})
	require.NoError(t, err)
	require.True(t, res.Committed)

	tree, err := object.ReadTree(ctx, s, res.Tree)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestCommit_RemovalOfMissingPathIsNoop(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	base := testutil.CommitFiles(t, s, map[string][]byte{"t/a/attributes.yml": []byte("a: 1\n")})
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Removals: []string{"t/b/attributes.yml", "t/a/attributes.yml/nested"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, base, res.Commit)
}

func TestCommit_HeadMoved(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	c := newTestCommitter(t, s)

	stale := resolve(t, s)
	moved := testutil.CommitFiles(t, s, map[string][]byte{"t/other/attributes.yml": []byte("a: 1\n")})

	_, err := c.Commit(ctx, Request{
		Base: stale,
		Diff: diff.Diff{Writes: []diff.Write{{Path: "t/foo/attributes.yml", Data: []byte("a: 2\n")}}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConcurrentModification)
	assert.True(t, errs.IsRetryable(err))

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, moved, head, "head must be untouched")

	_, err = resolve(t, s).Read(ctx, "t/foo/attributes.yml")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, 1.0, promtest.ToFloat64(c.Metrics().ConflictsTotal))
}

func TestCommit_WriteUnderFileFails(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	testutil.CommitFiles(t, s, map[string][]byte{"t/a": []byte("file")})
	c := newTestCommitter(t, s)

	_, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Writes: []diff.Write{{Path: "t/a/b", Data: []byte("x")}}},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidKey)
}

type failingStore struct {
	*object.MemoryStore
	putErr error
}

func (f *failingStore) Put(ctx context.Context, objs ...object.Object) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, objs...)
}

func TestCommit_StoreFailure(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{MemoryStore: object.NewMemoryStore(), putErr: errors.New("disk full")}
	c := newTestCommitter(t, s)

	_, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Writes: []diff.Write{{Path: "t/a/attributes.yml", Data: []byte("a: 1\n")}}},
	})
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.True(t, head.IsZero())
}

func TestCommit_DefaultAuthor(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	c := newTestCommitter(t, s)

	res, err := c.Commit(ctx, Request{
		Base: resolve(t, s),
		Diff: diff.Diff{Writes: []diff.Write{{Path: "t/a/x", Data: []byte("1")}}},
	})
	require.NoError(t, err)

	info, err := object.ReadCommit(ctx, s, res.Commit)
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthor.Name, info.Author)
}

func TestLog(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	c := newTestCommitter(t, s)

	var commits []object.Hash
	for _, v := range []string{"1", "2", "3"} {
		res, err := c.Commit(ctx, Request{
			Base:    resolve(t, s),
			Diff:    diff.Diff{Writes: []diff.Write{{Path: "t/a/x", Data: []byte(v)}}},
			Message: "v" + v,
		})
		require.NoError(t, err)
		commits = append(commits, res.Commit)
	}

	entries, err := Log(ctx, s, commits[2], 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, commits[2], entries[0].Hash)
	assert.Equal(t, "v3", entries[0].Message)
	assert.Equal(t, commits[0], entries[2].Hash)
	assert.True(t, entries[2].Parent.IsZero())

	entries, err = Log(ctx, s, commits[2], 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = Log(ctx, s, object.ZeroHash, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
