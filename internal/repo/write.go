package repo

import (
	"context"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/paths"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/snapshot"
	"github.com/roach88/recordtree/internal/txn"
)

// Result describes a write.
type Result struct {
	// Commit is the head after the write.
	Commit object.Hash

	// Committed is false when the write changed nothing and no commit was
	// created.
	Committed bool
}

// SaveResult describes a save.
type SaveResult struct {
	Result

	// OK is false when validation rejected the record. Nothing was written
	// and the messages are available from the record's Errors.
	OK bool
}

// Fields are the initial contents of a record built by Create.
type Fields struct {
	ID         string
	Attributes any
	Blobs      map[string][]byte
}

// Create builds a record from fields and saves it. The record is returned
// even when validation rejects it; check IsPersisted and Errors.
func (r *Repository) Create(ctx context.Context, typ *record.Type, f Fields) (*record.Record, error) {
	if typ == nil {
		return nil, errs.InvalidKey("create", "type is nil")
	}
	rec := record.New(typ, f.ID)
	if err := rec.Merge(f.Attributes); err != nil {
		return nil, err
	}
	for name, data := range f.Blobs {
		if err := rec.SetBlob(name, data); err != nil {
			return nil, err
		}
	}
	if _, err := r.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Save validates rec and commits its attributes and blobs. Blobs stored
// earlier but no longer on rec are removed.
//
// A record rejected by validation yields OK=false and a nil error. Saving
// an unchanged record succeeds without creating a commit.
func (r *Repository) Save(ctx context.Context, rec *record.Record) (SaveResult, error) {
	if rec == nil {
		return SaveResult{}, errs.InvalidKey("save", "record is nil")
	}
	if rec.IsFrozen() {
		return SaveResult{}, &errs.Error{Code: errs.CodeFrozen, Op: "save", Type: rec.Type.String(), ID: rec.ID, Message: "record was deleted"}
	}
	if err := checkKey(rec.Type, rec.ID); err != nil {
		return SaveResult{}, err
	}
	for name := range rec.Blobs {
		if err := paths.ValidateBlobName(name); err != nil {
			return SaveResult{}, err
		}
	}

	if err := r.schema.Materialize(rec); err != nil {
		return SaveResult{}, err
	}
	if ok, found := rec.Validate(); !ok {
		r.logger.Debug("save rejected by validation",
			"type", rec.Type.Name,
			"id", rec.ID,
			"fields", found.Fields())
		return SaveResult{OK: false}, nil
	}

	want := diff.Record{
		TypeDir:    rec.Type.Dir,
		ID:         rec.ID,
		Attributes: rec.Attributes,
		Blobs:      rec.Blobs,
	}
	res, err := r.write(ctx, "save", "save "+rec.Key(), func(snap *snapshot.Snapshot) (diff.Diff, error) {
		return diff.ForSave(ctx, snap, want, r.policy)
	})
	if err != nil {
		return SaveResult{}, withRecord(err, rec.Type.Name, rec.ID)
	}
	rec.MarkPersisted(res.Commit)
	return SaveResult{Result: res, OK: true}, nil
}

// SaveOrFail is Save with validation rejection and every other failure
// reported as errs.CodeSaveFailed. The underlying cause stays reachable
// with errors.Is.
func (r *Repository) SaveOrFail(ctx context.Context, rec *record.Record) (Result, error) {
	res, err := r.Save(ctx, rec)
	if err != nil {
		return Result{}, errs.Wrap(errs.CodeSaveFailed, "save or fail", err)
	}
	if !res.OK {
		return Result{}, &errs.Error{
			Code:    errs.CodeSaveFailed,
			Op:      "save or fail",
			Type:    rec.Type.Name,
			ID:      rec.ID,
			Message: "validation failed",
			Fields:  rec.Errors(),
			Err:     errs.ErrValidationFailed,
		}
	}
	return res.Result, nil
}

// Delete removes every file of a record. Deleting an absent record is a
// no-op.
func (r *Repository) Delete(ctx context.Context, typ *record.Type, id string) (Result, error) {
	if err := checkKey(typ, id); err != nil {
		return Result{}, err
	}
	res, err := r.write(ctx, "delete", "delete "+paths.Join(typ.Dir, id), func(snap *snapshot.Snapshot) (diff.Diff, error) {
		return diff.ForDelete(ctx, snap, typ.Dir, id)
	})
	if err != nil {
		return Result{}, withRecord(err, typ.Name, id)
	}
	return res, nil
}

// DeleteRecord deletes rec and freezes it.
func (r *Repository) DeleteRecord(ctx context.Context, rec *record.Record) (Result, error) {
	if rec == nil {
		return Result{}, errs.InvalidKey("delete", "record is nil")
	}
	res, err := r.Delete(ctx, rec.Type, rec.ID)
	if err != nil {
		return Result{}, err
	}
	rec.MarkDeleted(res.Commit)
	return res, nil
}

// DeleteAll removes every record of typ in one commit.
func (r *Repository) DeleteAll(ctx context.Context, typ *record.Type) (Result, error) {
	if typ == nil {
		return Result{}, errs.InvalidKey("delete all", "type is nil")
	}
	if _, err := paths.TypeDir(typ.Dir); err != nil {
		return Result{}, err
	}
	return r.write(ctx, "delete all", "delete all "+typ.Dir, func(snap *snapshot.Snapshot) (diff.Diff, error) {
		return diff.ForDeleteAll(ctx, snap, typ.Dir)
	})
}

// write holds the write lock, builds a diff against the current head and
// commits it, retrying on concurrent modification.
func (r *Repository) write(ctx context.Context, op, message string, build func(*snapshot.Snapshot) (diff.Diff, error)) (Result, error) {
	release, err := r.lock(ctx, op)
	if err != nil {
		return Result{}, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		snap, err := r.Snapshot(ctx)
		if err != nil {
			return Result{}, err
		}
		d, err := build(snap)
		if err != nil {
			return Result{}, err
		}
		res, err := r.committer.Commit(ctx, txn.Request{
			Base:    snap,
			Diff:    d,
			Author:  r.author,
			Message: message,
		})
		if err == nil {
			if res.Committed {
				r.logger.Info(op, "commit", res.Commit.Short(), "message", message)
			}
			return Result{Commit: res.Commit, Committed: res.Committed}, nil
		}
		if !errs.IsRetryable(err) || attempt > r.maxRetries {
			return Result{}, err
		}
		r.metrics.RetriesTotal.Inc()
		r.logger.Warn("retrying after concurrent modification",
			"op", op,
			"attempt", attempt,
			"parent", snap.Commit().Short())
	}
}

func (r *Repository) lock(ctx context.Context, op string) (func(), error) {
	wait := ctx
	if r.writeTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
	}
	select {
	case r.writeSem <- struct{}{}:
		return func() { <-r.writeSem }, nil
	case <-wait.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errs.New(errs.CodeTimeout, op, "write lock not acquired within %s", r.writeTimeout)
	}
}

// withRecord fills in the record identity on an *errs.Error that lacks it.
func withRecord(err error, typ, id string) error {
	e, ok := err.(*errs.Error)
	if !ok || e.ID != "" {
		return err
	}
	cp := *e
	cp.Type, cp.ID = typ, id
	return &cp
}
