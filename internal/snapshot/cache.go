package snapshot

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/recordtree/internal/object"
)

// DefaultCacheSize is the number of decoded trees kept by NewTreeCache(0).
const DefaultCacheSize = 1024

// TreeCache is an LRU of decoded trees keyed by hash. Concurrent loads of
// the same tree are collapsed into one store read.
//
// Cached trees are shared and must not be modified by callers.
type TreeCache struct {
	mu      sync.Mutex
	size    int
	entries map[object.Hash]*list.Element
	lru     *list.List
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	hash object.Hash
	tree *object.Tree
}

// NewTreeCache creates a cache holding at most size trees.
func NewTreeCache(size int) *TreeCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &TreeCache{
		size:    size,
		entries: make(map[object.Hash]*list.Element),
		lru:     list.New(),
	}
}

// Load returns the tree with hash h, reading it from s on a miss.
//
// The shared read ignores caller cancellation. A canceled caller stops
// waiting and gets ctx.Err(); other callers still receive the tree.
func (c *TreeCache) Load(ctx context.Context, s object.Store, h object.Hash) (*object.Tree, error) {
	if t, ok := c.get(h); ok {
		c.hits.Add(1)
		return t, nil
	}
	c.misses.Add(1)

	readCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(string(h), func() (any, error) {
		t, err := object.ReadTree(readCtx, s, h)
		if err != nil {
			return nil, err
		}
		c.add(h, t)
		return t, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*object.Tree), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns hit and miss counts.
func (c *TreeCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached trees.
func (c *TreeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *TreeCache) get(h object.Hash) (*object.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[h]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*cacheEntry).tree, true
}

func (c *TreeCache) add(h object.Hash, t *object.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[h]; ok {
		c.lru.MoveToFront(el)
		return
	}
	c.entries[h] = c.lru.PushFront(&cacheEntry{hash: h, tree: t})
	for c.lru.Len() > c.size {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).hash)
	}
}
