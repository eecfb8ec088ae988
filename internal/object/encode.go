package object

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("object: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("object: CBOR decoder initialization failed: " + err.Error())
	}
}

// NewBlob wraps raw bytes as a blob object.
func NewBlob(data []byte) Object {
	return NewObject(KindBlob, data)
}

// EncodeTree sorts the entries and encodes the tree.
// Duplicate names and entries with empty names or hashes are rejected.
func EncodeTree(t Tree) (Object, error) {
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for i, e := range entries {
		if e.Name == "" {
			return Object{}, fmt.Errorf("encode tree: entry %d has empty name", i)
		}
		if e.Hash.IsZero() {
			return Object{}, fmt.Errorf("encode tree: entry %q has empty hash", e.Name)
		}
		if e.Kind != KindBlob && e.Kind != KindTree {
			return Object{}, fmt.Errorf("encode tree: entry %q has kind %q", e.Name, e.Kind)
		}
		if i > 0 && entries[i-1].Name == e.Name {
			return Object{}, fmt.Errorf("encode tree: duplicate entry %q", e.Name)
		}
	}

	data, err := encMode.Marshal(Tree{Entries: entries})
	if err != nil {
		return Object{}, fmt.Errorf("encode tree: %w", err)
	}
	return NewObject(KindTree, data), nil
}

// DecodeTree decodes a tree object.
func DecodeTree(o Object) (*Tree, error) {
	if o.Kind != KindTree {
		return nil, fmt.Errorf("decode tree %s: object is a %s", o.Hash.Short(), o.Kind)
	}
	var t Tree
	if err := decMode.Unmarshal(o.Data, &t); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", o.Hash.Short(), err)
	}
	return &t, nil
}

// EncodeCommit encodes a commit object.
func EncodeCommit(c Commit) (Object, error) {
	if c.Tree.IsZero() {
		return Object{}, fmt.Errorf("encode commit: empty tree hash")
	}
	data, err := encMode.Marshal(c)
	if err != nil {
		return Object{}, fmt.Errorf("encode commit: %w", err)
	}
	return NewObject(KindCommit, data), nil
}

// DecodeCommit decodes a commit object.
func DecodeCommit(o Object) (*Commit, error) {
	if o.Kind != KindCommit {
		return nil, fmt.Errorf("decode commit %s: object is a %s", o.Hash.Short(), o.Kind)
	}
	var c Commit
	if err := decMode.Unmarshal(o.Data, &c); err != nil {
		return nil, fmt.Errorf("decode commit %s: %w", o.Hash.Short(), err)
	}
	return &c, nil
}
