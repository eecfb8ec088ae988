package object

import (
	"fmt"
	"sort"
)

// Kind identifies the kind of object stored.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBlob, KindTree, KindCommit:
		return true
	}
	return false
}

// Object is an encoded object ready to be stored.
type Object struct {
	Hash Hash
	Kind Kind
	Data []byte
}

// NewObject hashes data and returns the object.
func NewObject(kind Kind, data []byte) Object {
	return Object{Hash: HashOf(kind, data), Kind: kind, Data: data}
}

// Verify checks that the hash matches the content.
func (o Object) Verify() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("object %s: unknown kind %q", o.Hash.Short(), o.Kind)
	}
	if got := HashOf(o.Kind, o.Data); got != o.Hash {
		return fmt.Errorf("object %s: content hashes to %s", o.Hash.Short(), got.Short())
	}
	return nil
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name string `cbor:"name"`
	Kind Kind   `cbor:"kind"` // KindBlob or KindTree
	Hash Hash   `cbor:"hash"`
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Kind == KindTree
}

// Tree holds a list of entries sorted by Name. Names are unique.
type Tree struct {
	Entries []TreeEntry `cbor:"entries"`
}

// Find returns the entry with the given name.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return TreeEntry{}, false
}

// Names returns entry names in tree order.
func (t *Tree) Names() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.Entries)
}

// Commit points at a root tree and at most one parent.
// The history is linear: Parent is ZeroHash only for the first commit.
type Commit struct {
	Tree    Hash   `cbor:"tree"`
	Parent  Hash   `cbor:"parent,omitempty"`
	Author  string `cbor:"author"`
	Email   string `cbor:"email,omitempty"`
	Time    int64  `cbor:"time"` // unix seconds
	Message string `cbor:"message"`
}
