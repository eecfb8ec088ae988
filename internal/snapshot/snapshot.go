package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/paths"
)

// ErrIsDir is returned by Read when the path names a directory.
var ErrIsDir = errors.New("path is a directory")

// Snapshot is an immutable view of the tree at one commit.
type Snapshot struct {
	store  object.Store
	cache  *TreeCache
	commit object.Hash
	root   object.Hash
	info   *object.Commit
}

// Option configures snapshot resolution.
type Option func(*Snapshot)

// WithCache shares a tree cache between snapshots.
func WithCache(c *TreeCache) Option {
	return func(s *Snapshot) { s.cache = c }
}

// Resolve reads the current head and returns a snapshot of it.
func Resolve(ctx context.Context, store object.Store, opts ...Option) (*Snapshot, error) {
	head, err := store.Head(ctx)
	if err != nil {
		return nil, errs.Unavailable("resolve head", err)
	}
	return ResolveAt(ctx, store, head, opts...)
}

// ResolveAt returns a snapshot of an explicit commit. The zero hash
// resolves to the empty tree.
func ResolveAt(ctx context.Context, store object.Store, commit object.Hash, opts ...Option) (*Snapshot, error) {
	s := &Snapshot{store: store, commit: commit}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewTreeCache(0)
	}
	if commit.IsZero() {
		return s, nil
	}

	c, err := object.ReadCommit(ctx, store, commit)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			return nil, errs.New(errs.CodeNotFound, "resolve", "commit %s not found", commit.Short())
		}
		return nil, errs.Unavailable("resolve", err)
	}
	s.info = c
	s.root = c.Tree
	return s, nil
}

// Commit returns the commit hash the snapshot was resolved at, or ZeroHash
// for an empty history.
func (s *Snapshot) Commit() object.Hash { return s.commit }

// Root returns the root tree hash, or ZeroHash for the empty tree.
func (s *Snapshot) Root() object.Hash { return s.root }

// Info returns the resolved commit, or nil for an empty history.
func (s *Snapshot) Info() *object.Commit { return s.info }

// Store returns the object store backing the snapshot.
func (s *Snapshot) Store() object.Store { return s.store }

// Cache returns the tree cache used by the snapshot.
func (s *Snapshot) Cache() *TreeCache { return s.cache }

// Tree returns the tree at dir. The empty dir is the root. A missing
// directory yields an empty tree and false.
func (s *Snapshot) Tree(ctx context.Context, dir string) (*object.Tree, bool, error) {
	if s.root.IsZero() {
		return &object.Tree{}, dir == "", nil
	}
	t, err := s.load(ctx, s.root)
	if err != nil {
		return nil, false, err
	}
	for _, seg := range paths.Split(dir) {
		e, ok := t.Find(seg)
		if !ok || !e.IsDir() {
			return &object.Tree{}, false, nil
		}
		if t, err = s.load(ctx, e.Hash); err != nil {
			return nil, false, err
		}
	}
	return t, true, nil
}

// Stat returns the entry at path.
func (s *Snapshot) Stat(ctx context.Context, path string) (object.TreeEntry, bool, error) {
	segs := paths.Split(path)
	if len(segs) == 0 {
		return object.TreeEntry{Kind: object.KindTree, Hash: s.root}, true, nil
	}
	parent, ok, err := s.Tree(ctx, paths.Join(segs[:len(segs)-1]...))
	if err != nil || !ok {
		return object.TreeEntry{}, false, err
	}
	e, ok := parent.Find(segs[len(segs)-1])
	return e, ok, nil
}

// Exists reports whether path names a file or directory.
func (s *Snapshot) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := s.Stat(ctx, path)
	return ok, err
}

// Read returns the contents of the file at path. A missing path yields an
// error matching fs.ErrNotExist.
func (s *Snapshot) Read(ctx context.Context, path string) ([]byte, error) {
	e, ok, err := s.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	if e.IsDir() {
		return nil, fmt.Errorf("read %s: %w", path, ErrIsDir)
	}
	data, err := object.ReadBlob(ctx, s.store, e.Hash)
	if err != nil {
		return nil, errs.Unavailable("read "+path, err)
	}
	return data, nil
}

// List returns the entries of the directory at dir in name order. A missing
// directory lists as empty.
func (s *Snapshot) List(ctx context.Context, dir string) ([]object.TreeEntry, error) {
	t, _, err := s.Tree(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]object.TreeEntry, len(t.Entries))
	copy(out, t.Entries)
	return out, nil
}

// WalkFunc is called for every file below the walked directory with its
// full slash-separated path.
type WalkFunc func(path string, e object.TreeEntry) error

// Walk visits every file below dir in path order.
func (s *Snapshot) Walk(ctx context.Context, dir string, fn WalkFunc) error {
	t, ok, err := s.Tree(ctx, dir)
	if err != nil || !ok {
		return err
	}
	return s.walk(ctx, dir, t, fn)
}

func (s *Snapshot) walk(ctx context.Context, dir string, t *object.Tree, fn WalkFunc) error {
	for _, e := range t.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := paths.Join(dir, e.Name)
		if !e.IsDir() {
			if err := fn(p, e); err != nil {
				return err
			}
			continue
		}
		sub, err := s.load(ctx, e.Hash)
		if err != nil {
			return err
		}
		if err := s.walk(ctx, p, sub, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Snapshot) load(ctx context.Context, h object.Hash) (*object.Tree, error) {
	t, err := s.cache.Load(ctx, s.store, h)
	if err != nil {
		return nil, errs.Unavailable("load tree", err)
	}
	return t, nil
}
