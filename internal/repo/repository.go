package repo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/schema"
	"github.com/roach88/recordtree/internal/snapshot"
	"github.com/roach88/recordtree/internal/store"
	"github.com/roach88/recordtree/internal/store/badgerstore"
	"github.com/roach88/recordtree/internal/txn"
)

const (
	sqliteFile = "recordtree.db"
	badgerDir  = "badger"

	defaultReadConcurrency = 8
)

// Repository is a handle on one record store.
type Repository struct {
	root      string
	backend   string
	store     object.Store
	ownsStore bool

	committer *txn.Committer
	cache     *snapshot.TreeCache
	schema    *schema.Registry
	metrics   *txn.Metrics
	logger    *slog.Logger
	now       func() time.Time
	author    txn.Author

	maxRetries      int
	writeTimeout    time.Duration
	policy          diff.EmptyPolicy
	readConcurrency int

	// writeSem is a one-slot semaphore held for the whole write.
	writeSem chan struct{}
}

// Open opens the repository rooted at root, creating it if needed.
//
// The default backend is SQLite in <root>/recordtree.db. The memory backend
// needs no root.
func Open(root string, opts ...Option) (*Repository, error) {
	r := &Repository{
		backend:         BackendSQLite,
		logger:          slog.Default(),
		now:             time.Now,
		author:          txn.DefaultAuthor,
		maxRetries:      DefaultMaxRetries,
		readConcurrency: defaultReadConcurrency,
		writeSem:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("open repository: %w", err)
		}
		r.root = abs
	}
	if r.schema == nil {
		r.schema = schema.NewRegistry(schema.WithClock(r.now))
	}
	if r.readConcurrency <= 0 {
		r.readConcurrency = defaultReadConcurrency
	}

	if r.store == nil {
		s, err := r.openStore()
		if err != nil {
			return nil, err
		}
		r.store = s
		r.ownsStore = true
	}

	r.cache = snapshot.NewTreeCache(0)
	copts := []txn.Option{txn.WithLogger(r.logger), txn.WithClock(r.now)}
	if r.metrics != nil {
		copts = append(copts, txn.WithMetrics(r.metrics))
	}
	r.committer = txn.New(r.store, copts...)
	r.metrics = r.committer.Metrics()

	r.logger.Debug("repository opened", "root", r.root, "backend", r.backend)
	return r, nil
}

func (r *Repository) openStore() (object.Store, error) {
	if r.backend == BackendMemory {
		return object.NewMemoryStore(), nil
	}
	if r.root == "" {
		return nil, errs.InvalidKey("open repository", "root is empty")
	}
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return nil, errs.Unavailable("open repository", err)
	}

	switch r.backend {
	case BackendSQLite:
		s, err := store.Open(filepath.Join(r.root, sqliteFile))
		if err != nil {
			return nil, errs.Unavailable("open repository", err)
		}
		return s, nil
	case BackendBadger:
		s, err := badgerstore.Open(filepath.Join(r.root, badgerDir), r.logger)
		if err != nil {
			return nil, errs.Unavailable("open repository", err)
		}
		return s, nil
	}
	return nil, errs.New(errs.CodeInvalidKey, "open repository", "unknown backend %q", r.backend)
}

// Close releases the store if the repository opened it.
func (r *Repository) Close() error {
	if !r.ownsStore {
		return nil
	}
	return r.store.Close()
}

// Root returns the absolute storage root, or "" for an unrooted store.
func (r *Repository) Root() string { return r.root }

// Backend returns the backend name.
func (r *Repository) Backend() string { return r.backend }

// Store returns the underlying object store.
func (r *Repository) Store() object.Store { return r.store }

// Schema returns the schema registry.
func (r *Repository) Schema() *schema.Registry { return r.schema }

// Metrics returns the commit metrics.
func (r *Repository) Metrics() *txn.Metrics { return r.metrics }

// Type returns the record type for name, as declared in the schema.
func (r *Repository) Type(name string, opts ...record.TypeOption) (*record.Type, error) {
	return r.schema.Type(name, opts...)
}

// Snapshot resolves the current head.
func (r *Repository) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	return snapshot.Resolve(ctx, r.store, snapshot.WithCache(r.cache))
}

// SnapshotAt resolves an explicit commit.
func (r *Repository) SnapshotAt(ctx context.Context, commit object.Hash) (*snapshot.Snapshot, error) {
	return snapshot.ResolveAt(ctx, r.store, commit, snapshot.WithCache(r.cache))
}

// Head returns the current head commit, or ZeroHash for an empty history.
func (r *Repository) Head(ctx context.Context) (object.Hash, error) {
	h, err := r.store.Head(ctx)
	if err != nil {
		return object.ZeroHash, errs.Unavailable("head", err)
	}
	return h, nil
}

// Log returns up to limit commits from the head, newest first.
func (r *Repository) Log(ctx context.Context, limit int) ([]txn.LogEntry, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	return txn.Log(ctx, r.store, head, limit)
}
