// Package diff computes the minimal set of path writes and removals that
// takes a snapshot from its current contents to the desired contents of a
// record.
//
// A record is the set of files directly inside its directory. Subdirectories
// belong to nested types and are never written or removed on the record's
// behalf. An unchanged record produces an empty Diff.
package diff

import (
	"context"
	"slices"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/paths"
	"github.com/roach88/recordtree/internal/snapshot"
)

// Write sets the file at Path to Data.
type Write struct {
	Path string
	Data []byte
}

// Diff is an ordered set of writes and removals. Paths in Writes and
// Removals are disjoint and each list is sorted.
type Diff struct {
	Writes   []Write
	Removals []string
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool {
	return len(d.Writes) == 0 && len(d.Removals) == 0
}

// Paths returns every path touched by the diff, sorted.
func (d Diff) Paths() []string {
	out := make([]string, 0, len(d.Writes)+len(d.Removals))
	for _, w := range d.Writes {
		out = append(out, w.Path)
	}
	out = append(out, d.Removals...)
	slices.Sort(out)
	return out
}

// Merge combines diffs over disjoint paths.
func Merge(ds ...Diff) Diff {
	var out Diff
	for _, d := range ds {
		out.Writes = append(out.Writes, d.Writes...)
		out.Removals = append(out.Removals, d.Removals...)
	}
	out.sort()
	return out
}

func (d *Diff) sort() {
	slices.SortFunc(d.Writes, func(a, b Write) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	slices.Sort(d.Removals)
}

// EmptyPolicy decides how a record with no attributes and no blobs is saved.
type EmptyPolicy int

const (
	// DisallowEmpty rejects such saves with errs.CodeEmptyRecord.
	DisallowEmpty EmptyPolicy = iota

	// PlaceholderEmpty writes a zero-length .placeholder file so the record
	// directory exists.
	PlaceholderEmpty
)

// String returns the config spelling of the policy.
func (p EmptyPolicy) String() string {
	if p == PlaceholderEmpty {
		return "placeholder"
	}
	return "disallow"
}

// Record is the desired state of one record.
type Record struct {
	TypeDir    string
	ID         string
	Attributes codec.Map
	Blobs      map[string][]byte
}

// ForSave returns the diff that makes snap contain exactly rec under its
// record directory. Stale blobs and a stale attributes file are removed.
func ForSave(ctx context.Context, snap *snapshot.Snapshot, rec Record, policy EmptyPolicy) (Diff, error) {
	dir, err := paths.RecordDir(rec.TypeDir, rec.ID)
	if err != nil {
		return Diff{}, err
	}

	desired := make(map[string][]byte, len(rec.Blobs)+1)
	for name, data := range rec.Blobs {
		if err := paths.ValidateBlobName(name); err != nil {
			return Diff{}, err
		}
		desired[name] = data
	}
	attrs, err := codec.EncodeAttributes(rec.Attributes)
	if err != nil {
		return Diff{}, errs.Wrap(errs.CodeInvalidKey, "diff save", err)
	}
	if attrs != nil {
		desired[paths.AttributesFile] = attrs
	}
	if len(desired) == 0 {
		if policy != PlaceholderEmpty {
			return Diff{}, &errs.Error{
				Code:    errs.CodeEmptyRecord,
				Op:      "diff save",
				Type:    rec.TypeDir,
				ID:      rec.ID,
				Message: "record has no attributes and no blobs",
			}
		}
		desired[paths.PlaceholderFile] = []byte{}
	}

	if e, ok, err := snap.Stat(ctx, dir); err != nil {
		return Diff{}, err
	} else if ok && !e.IsDir() {
		return Diff{}, errs.InvalidKey("diff save", "record directory %q is a blob of another record", dir)
	}
	existing, err := snap.List(ctx, dir)
	if err != nil {
		return Diff{}, err
	}

	var d Diff
	current := make(map[string]object.Hash, len(existing))
	for _, e := range existing {
		if e.IsDir() {
			if _, clash := desired[e.Name]; clash {
				return Diff{}, errs.InvalidKey("diff save", "blob %q collides with nested type directory %q", e.Name, paths.Join(dir, e.Name))
			}
			continue
		}
		current[e.Name] = e.Hash
	}
	for name, data := range desired {
		if h, ok := current[name]; ok && h == object.HashOf(object.KindBlob, data) {
			continue
		}
		d.Writes = append(d.Writes, Write{Path: paths.Join(dir, name), Data: data})
	}
	for name := range current {
		if _, keep := desired[name]; !keep {
			d.Removals = append(d.Removals, paths.Join(dir, name))
		}
	}
	d.sort()
	return d, nil
}

// ForDelete returns removals for every file of the record. Deleting an
// absent record yields an empty diff.
func ForDelete(ctx context.Context, snap *snapshot.Snapshot, typeDir, id string) (Diff, error) {
	dir, err := paths.RecordDir(typeDir, id)
	if err != nil {
		return Diff{}, err
	}
	var d Diff
	if err := collectFiles(ctx, snap, dir, &d.Removals); err != nil {
		return Diff{}, err
	}
	d.sort()
	return d, nil
}

// ForDeleteAll returns removals for every file of every record in the type
// directory. Files of an enclosing record and nested type directories below
// each record are left alone.
func ForDeleteAll(ctx context.Context, snap *snapshot.Snapshot, typeDir string) (Diff, error) {
	dir, err := paths.TypeDir(typeDir)
	if err != nil {
		return Diff{}, err
	}
	entries, err := snap.List(ctx, dir)
	if err != nil {
		return Diff{}, err
	}
	var d Diff
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := collectFiles(ctx, snap, paths.Join(dir, e.Name), &d.Removals); err != nil {
			return Diff{}, err
		}
	}
	d.sort()
	return d, nil
}

func collectFiles(ctx context.Context, snap *snapshot.Snapshot, dir string, out *[]string) error {
	entries, err := snap.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			*out = append(*out, paths.Join(dir, e.Name))
		}
	}
	return nil
}
