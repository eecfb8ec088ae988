package repo

import (
	"context"
	"errors"
	"io/fs"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/paths"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/snapshot"
)

// Find loads a record from the current head.
func (r *Repository) Find(ctx context.Context, typ *record.Type, id string) (*record.Record, error) {
	if err := checkKey(typ, id); err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, snap, typ, id)
}

// FindAt loads a record as of an earlier commit.
func (r *Repository) FindAt(ctx context.Context, commit object.Hash, typ *record.Type, id string) (*record.Record, error) {
	if err := checkKey(typ, id); err != nil {
		return nil, err
	}
	snap, err := r.SnapshotAt(ctx, commit)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, snap, typ, id)
}

// Exists reports whether a record is present at the current head.
func (r *Repository) Exists(ctx context.Context, typ *record.Type, id string) (bool, error) {
	if err := checkKey(typ, id); err != nil {
		return false, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	entries, err := snap.List(ctx, paths.Join(typ.Dir, id))
	if err != nil {
		return false, err
	}
	return hasFiles(entries), nil
}

// FindAll loads every record of typ from one snapshot, ordered by id.
func (r *Repository) FindAll(ctx context.Context, typ *record.Type) ([]*record.Record, error) {
	if typ == nil {
		return nil, errs.InvalidKey("find all", "type is nil")
	}
	if _, err := paths.TypeDir(typ.Dir); err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := snap.List(ctx, typ.Dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name)
		}
	}

	// Directories holding only nested type directories are not records and
	// load as NotFound; they leave a nil slot that is dropped below.
	out := make([]*record.Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.readConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := r.load(gctx, snap, typ, id)
			if errs.Is(err, errs.CodeNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(out, func(rec *record.Record) bool { return rec == nil }), nil
}

// Reload replaces rec's attributes and blobs with those at the current
// head.
func (r *Repository) Reload(ctx context.Context, rec *record.Record) error {
	if rec == nil {
		return errs.InvalidKey("reload", "record is nil")
	}
	fresh, err := r.Find(ctx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	rec.Replace(fresh)
	return nil
}

func (r *Repository) load(ctx context.Context, snap *snapshot.Snapshot, typ *record.Type, id string) (*record.Record, error) {
	dir := paths.Join(typ.Dir, id)
	entries, err := snap.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !hasFiles(entries) {
		return nil, errs.NotFound("find", typ.Name, id)
	}

	rec := record.New(typ, id)
	for _, e := range entries {
		if e.IsDir() || e.Name == paths.PlaceholderFile {
			continue
		}
		p := paths.Join(dir, e.Name)
		data, err := snap.Read(ctx, p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errs.NotFound("find", typ.Name, id)
			}
			return nil, err
		}
		if e.Name != paths.AttributesFile {
			rec.Blobs[e.Name] = data
			continue
		}
		attrs, err := codec.DecodeAttributes(data)
		if err != nil {
			return nil, &errs.Error{
				Code: errs.CodeCorruptRecord,
				Op:   "find",
				Type: typ.Name,
				ID:   id,
				Path: p,
				Err:  err,
			}
		}
		rec.Attributes = attrs
	}

	if err := r.schema.Materialize(rec); err != nil {
		return nil, err
	}
	rec.MarkPersisted(snap.Commit())
	return rec, nil
}

func hasFiles(entries []object.TreeEntry) bool {
	return slices.ContainsFunc(entries, func(e object.TreeEntry) bool { return !e.IsDir() })
}

func checkKey(typ *record.Type, id string) error {
	if typ == nil {
		return errs.InvalidKey("check key", "type is nil")
	}
	_, err := paths.RecordDir(typ.Dir, id)
	return err
}
