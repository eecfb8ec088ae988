package repo

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/record"
)

var (
	defaultMu sync.RWMutex
	current   *Repository
)

// Initialize opens the repository at root and installs it as the process
// default.
//
// Calling Initialize again with the same root is a no-op that returns the
// installed repository; opts are ignored in that case. Calling it with a
// different root fails with errs.CodeAlreadyInitialized; call Teardown
// first to switch roots.
func Initialize(root string, opts ...Option) (*Repository, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	abs := root
	if root != "" {
		var err error
		if abs, err = filepath.Abs(root); err != nil {
			return nil, errs.Wrap(errs.CodeInvalidKey, "initialize", err)
		}
	}
	if current != nil {
		if current.root == abs {
			return current, nil
		}
		return nil, errs.New(errs.CodeAlreadyInitialized, "initialize",
			"repository already initialized at %q", current.root)
	}

	r, err := Open(root, opts...)
	if err != nil {
		return nil, err
	}
	current = r
	return r, nil
}

// Default returns the process default repository.
func Default() (*Repository, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if current == nil {
		return nil, errs.New(errs.CodeNotInitialized, "default", "repository not initialized")
	}
	return current, nil
}

// Swap installs r as the process default and returns a function restoring
// the previous one. The swapped-in repository is not closed on restore.
//
//	restore := repo.Swap(testRepo)
//	t.Cleanup(restore)
func Swap(r *Repository) (restore func()) {
	defaultMu.Lock()
	prev := current
	current = r
	defaultMu.Unlock()
	return func() {
		defaultMu.Lock()
		current = prev
		defaultMu.Unlock()
	}
}

// Teardown closes and uninstalls the process default. It is safe to call
// when nothing is installed.
func Teardown() error {
	defaultMu.Lock()
	r := current
	current = nil
	defaultMu.Unlock()
	if r == nil {
		return nil
	}
	return r.Close()
}

// Find calls Find on the default repository.
func Find(ctx context.Context, typ *record.Type, id string) (*record.Record, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, typ, id)
}

// FindAll calls FindAll on the default repository.
func FindAll(ctx context.Context, typ *record.Type) ([]*record.Record, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.FindAll(ctx, typ)
}

// Exists calls Exists on the default repository.
func Exists(ctx context.Context, typ *record.Type, id string) (bool, error) {
	r, err := Default()
	if err != nil {
		return false, err
	}
	return r.Exists(ctx, typ, id)
}

// Create calls Create on the default repository.
func Create(ctx context.Context, typ *record.Type, f Fields) (*record.Record, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Create(ctx, typ, f)
}

// Save calls Save on the default repository.
func Save(ctx context.Context, rec *record.Record) (SaveResult, error) {
	r, err := Default()
	if err != nil {
		return SaveResult{}, err
	}
	return r.Save(ctx, rec)
}

// SaveOrFail calls SaveOrFail on the default repository.
func SaveOrFail(ctx context.Context, rec *record.Record) (Result, error) {
	r, err := Default()
	if err != nil {
		return Result{}, err
	}
	return r.SaveOrFail(ctx, rec)
}

// Delete calls Delete on the default repository.
func Delete(ctx context.Context, typ *record.Type, id string) (Result, error) {
	r, err := Default()
	if err != nil {
		return Result{}, err
	}
	return r.Delete(ctx, typ, id)
}

// DeleteAll calls DeleteAll on the default repository.
func DeleteAll(ctx context.Context, typ *record.Type) (Result, error) {
	r, err := Default()
	if err != nil {
		return Result{}, err
	}
	return r.DeleteAll(ctx, typ)
}
