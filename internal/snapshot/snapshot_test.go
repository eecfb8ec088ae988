package snapshot

import (
	"context"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/testutil"
)

func seeded(t *testing.T) (*object.MemoryStore, object.Hash) {
	t.Helper()
	s := object.NewMemoryStore()
	c := testutil.CommitFiles(t, s, map[string][]byte{
		"test_entities/foo/attributes.yml": []byte("name: foo\n"),
		"test_entities/foo/avatar":         []byte("png"),
		"test_entities/bar/attributes.yml": []byte("name: bar\n"),
		"other/x/attributes.yml":           []byte("a: 1\n"),
	})
	return s, c
}

func TestResolve_EmptyHistory(t *testing.T) {
	ctx := context.Background()
	snap, err := Resolve(ctx, object.NewMemoryStore())
	require.NoError(t, err)

	assert.True(t, snap.Commit().IsZero())
	assert.True(t, snap.Root().IsZero())
	assert.Nil(t, snap.Info())

	entries, err := snap.List(ctx, "test_entities")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = snap.Read(ctx, "test_entities/foo/attributes.yml")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolve_Head(t *testing.T) {
	ctx := context.Background()
	s, c := seeded(t)

	snap, err := Resolve(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, c, snap.Commit())
	require.NotNil(t, snap.Info())
	assert.Equal(t, "seed", snap.Info().Message)
}

func TestResolveAt_UnknownCommit(t *testing.T) {
	_, err := ResolveAt(context.Background(), object.NewMemoryStore(), object.HashOf(object.KindCommit, []byte("nope")))
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestSnapshot_Read(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	snap, err := Resolve(ctx, s)
	require.NoError(t, err)

	data, err := snap.Read(ctx, "test_entities/foo/attributes.yml")
	require.NoError(t, err)
	assert.Equal(t, "name: foo\n", string(data))

	_, err = snap.Read(ctx, "test_entities/foo/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = snap.Read(ctx, "test_entities/foo/avatar/deeper")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = snap.Read(ctx, "test_entities/foo")
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestSnapshot_ListAndExists(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	snap, err := Resolve(ctx, s)
	require.NoError(t, err)

	entries, err := snap.List(ctx, "test_entities")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bar", entries[0].Name)
	assert.Equal(t, "foo", entries[1].Name)
	assert.True(t, entries[0].IsDir())

	ok, err := snap.Exists(ctx, "test_entities/foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = snap.Exists(ctx, "test_entities/baz")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err = snap.List(ctx, "nothing/here")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshot_Walk(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	snap, err := Resolve(ctx, s)
	require.NoError(t, err)

	var got []string
	err = snap.Walk(ctx, "test_entities", func(p string, _ object.TreeEntry) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"test_entities/bar/attributes.yml",
		"test_entities/foo/attributes.yml",
		"test_entities/foo/avatar",
	}, got)
}

func TestSnapshot_IsolatedFromLaterCommits(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	snap, err := Resolve(ctx, s)
	require.NoError(t, err)

	testutil.CommitFiles(t, s, map[string][]byte{
		"test_entities/foo/attributes.yml": []byte("name: changed\n"),
	})

	data, err := snap.Read(ctx, "test_entities/foo/attributes.yml")
	require.NoError(t, err)
	assert.Equal(t, "name: foo\n", string(data))

	ok, err := snap.Exists(ctx, "test_entities/bar")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTreeCache_SharedAcrossSnapshots(t *testing.T) {
	ctx := context.Background()
	s, _ := seeded(t)
	cache := NewTreeCache(16)

	for i := 0; i < 3; i++ {
		snap, err := Resolve(ctx, s, WithCache(cache))
		require.NoError(t, err)
		_, err = snap.Read(ctx, "test_entities/foo/attributes.yml")
		require.NoError(t, err)
	}

	hits, misses := cache.Stats()
	assert.Equal(t, int64(3), misses, "root, type dir, record dir load once")
	assert.Equal(t, int64(6), hits)
}

func TestTreeCache_Evicts(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	cache := NewTreeCache(2)

	for _, name := range []string{"a", "b", "c"} {
		h := testutil.BuildTree(t, s, map[string][]byte{name: []byte(name)})
		_, err := cache.Load(ctx, s, h)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
}

func TestTreeCache_ConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	s := object.NewMemoryStore()
	h := testutil.BuildTree(t, s, map[string][]byte{"a": []byte("a")})
	cache := NewTreeCache(0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := cache.Load(ctx, s, h)
			assert.NoError(t, err)
			assert.Equal(t, 1, tree.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cache.Len())
}

// gatedStore blocks every Get until release is closed, failing early if the
// read's own context is canceled.
type gatedStore struct {
	object.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Get(ctx context.Context, h object.Hash) (object.Object, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return g.Store.Get(ctx, h)
	case <-ctx.Done():
		return object.Object{}, ctx.Err()
	}
}

func TestTreeCache_CanceledCallerDoesNotFailOthers(t *testing.T) {
	mem := object.NewMemoryStore()
	h := testutil.BuildTree(t, mem, map[string][]byte{"a": []byte("a")})
	s := &gatedStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	cache := NewTreeCache(0)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Load(ctx, s, h)
		first <- err
	}()
	<-s.entered

	type result struct {
		tree *object.Tree
		err  error
	}
	second := make(chan result, 1)
	go func() {
		tree, err := cache.Load(context.Background(), s, h)
		second <- result{tree, err}
	}()
	// Give the second caller time to join the in-flight read.
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(s.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.tree.Len())
	assert.Equal(t, 1, cache.Len())
}
