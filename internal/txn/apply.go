package txn

import (
	"context"
	"strings"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/paths"
	"github.com/roach88/recordtree/internal/snapshot"
)

type change struct {
	data   []byte
	remove bool
}

// applier rewrites the trees touched by a diff, collecting every new object
// so they can be stored in one batch.
type applier struct {
	snap *snapshot.Snapshot
	objs []object.Object
	seen map[object.Hash]bool
}

func newApplier(snap *snapshot.Snapshot) *applier {
	return &applier{snap: snap, seen: make(map[object.Hash]bool)}
}

// root applies d to the snapshot root and returns the new root tree hash.
// An empty result is still stored as an empty tree.
func (a *applier) root(ctx context.Context, d diff.Diff) (object.Hash, error) {
	changes := make(map[string]change, len(d.Writes)+len(d.Removals))
	for _, w := range d.Writes {
		changes[w.Path] = change{data: w.Data}
	}
	for _, p := range d.Removals {
		changes[p] = change{remove: true}
	}

	h, empty, err := a.apply(ctx, a.snap.Root(), changes)
	if err != nil {
		return object.ZeroHash, err
	}
	if !empty {
		return h, nil
	}
	o, err := object.EncodeTree(object.Tree{})
	if err != nil {
		return object.ZeroHash, err
	}
	a.add(o)
	return o.Hash, nil
}

func (a *applier) apply(ctx context.Context, treeHash object.Hash, changes map[string]change) (object.Hash, bool, error) {
	base := &object.Tree{}
	if !treeHash.IsZero() {
		t, err := a.snap.Cache().Load(ctx, a.snap.Store(), treeHash)
		if err != nil {
			return object.ZeroHash, false, errs.Unavailable("apply", err)
		}
		base = t
	}

	entries := make(map[string]object.TreeEntry, len(base.Entries)+len(changes))
	for _, e := range base.Entries {
		entries[e.Name] = e
	}

	groups := make(map[string]map[string]change)
	for p, ch := range changes {
		head, rest, nested := strings.Cut(p, paths.Separator)
		if nested {
			if groups[head] == nil {
				groups[head] = make(map[string]change)
			}
			groups[head][rest] = ch
			continue
		}
		if e, ok := entries[head]; ok && e.IsDir() {
			return object.ZeroHash, false, errs.New(errs.CodeInvalidKey, "apply", "%q is a directory", head)
		}
		if ch.remove {
			delete(entries, head)
			continue
		}
		o := object.NewBlob(ch.data)
		a.add(o)
		entries[head] = object.TreeEntry{Name: head, Kind: object.KindBlob, Hash: o.Hash}
	}

	for name, sub := range groups {
		var subHash object.Hash
		if e, ok := entries[name]; ok {
			if !e.IsDir() {
				if onlyRemovals(sub) {
					continue
				}
				return object.ZeroHash, false, errs.New(errs.CodeInvalidKey, "apply", "%q is a file", name)
			}
			subHash = e.Hash
		}
		h, empty, err := a.apply(ctx, subHash, sub)
		if err != nil {
			return object.ZeroHash, false, err
		}
		if empty {
			delete(entries, name)
			continue
		}
		entries[name] = object.TreeEntry{Name: name, Kind: object.KindTree, Hash: h}
	}

	if len(entries) == 0 {
		return object.ZeroHash, true, nil
	}
	t := object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		t.Entries = append(t.Entries, e)
	}
	o, err := object.EncodeTree(t)
	if err != nil {
		return object.ZeroHash, false, err
	}
	a.add(o)
	return o.Hash, false, nil
}

func (a *applier) add(o object.Object) {
	if a.seen[o.Hash] {
		return
	}
	a.seen[o.Hash] = true
	a.objs = append(a.objs, o)
}

func onlyRemovals(changes map[string]change) bool {
	for _, ch := range changes {
		if !ch.remove {
			return false
		}
	}
	return true
}
