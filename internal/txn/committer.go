package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/snapshot"
)

// Author identifies who made a commit.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no author is configured.
var DefaultAuthor = Author{Name: "recordtree"}

// Request describes one commit.
type Request struct {
	// Base is the snapshot the diff was computed against. Its commit is the
	// expected head and becomes the parent.
	Base *snapshot.Snapshot

	Diff    diff.Diff
	Author  Author
	Message string
}

// Result describes the outcome of Commit.
type Result struct {
	// Commit is the new head, or the base commit when nothing changed.
	Commit object.Hash

	// Parent is the base commit.
	Parent object.Hash

	// Tree is the root tree of Commit.
	Tree object.Hash

	// Committed is false when the diff was empty or left the tree unchanged.
	Committed bool
}

// Committer publishes diffs as commits.
type Committer struct {
	store   object.Store
	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics
}

// Option configures a Committer.
type Option func(*Committer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

// WithClock sets the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Committer) { c.metrics = m }
}

// New creates a Committer writing to store.
func New(store object.Store, opts ...Option) *Committer {
	c := &Committer{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Metrics returns the committer's instruments.
func (c *Committer) Metrics() *Metrics { return c.metrics }

// Commit applies req.Diff to req.Base and moves the head from the base
// commit to the new commit.
//
// Returns errs.CodeConcurrentModification if the head is no longer the base
// commit, and errs.CodeStoreUnavailable on store failures. In both cases
// the head is unchanged.
func (c *Committer) Commit(ctx context.Context, req Request) (Result, error) {
	if req.Base == nil {
		return Result{}, errors.New("commit: nil base snapshot")
	}
	parent := req.Base.Commit()
	res := Result{Commit: parent, Parent: parent, Tree: req.Base.Root()}
	if req.Diff.Empty() {
		c.metrics.NoopsTotal.Inc()
		return res, nil
	}

	start := time.Now()
	a := newApplier(req.Base)
	root, err := a.root(ctx, req.Diff)
	if err != nil {
		return Result{}, err
	}
	if root == req.Base.Root() {
		c.metrics.NoopsTotal.Inc()
		return res, nil
	}

	author := req.Author
	if author.Name == "" {
		author = DefaultAuthor
	}
	commit := object.Commit{
		Tree:    root,
		Parent:  parent,
		Author:  author.Name,
		Email:   author.Email,
		Time:    c.now().Unix(),
		Message: req.Message,
	}
	co, err := object.EncodeCommit(commit)
	if err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	objs := append(a.objs, co)
	if err := c.store.Put(ctx, objs...); err != nil {
		return Result{}, errs.Unavailable("commit", err)
	}
	c.metrics.ObjectsWrittenTotal.Add(float64(len(objs)))

	if err := c.store.UpdateHead(ctx, parent, co.Hash); err != nil {
		if errors.Is(err, object.ErrHeadMoved) {
			c.metrics.ConflictsTotal.Inc()
			c.logger.Debug("head moved during commit",
				"parent", parent.Short(),
				"commit", co.Hash.Short())
			return Result{}, &errs.Error{
				Code:    errs.CodeConcurrentModification,
				Op:      "commit",
				Message: fmt.Sprintf("head is no longer %s", displayHash(parent)),
				Err:     err,
			}
		}
		return Result{}, errs.Unavailable("commit", err)
	}

	c.metrics.CommitsTotal.Inc()
	c.metrics.CommitDurationSeconds.Observe(time.Since(start).Seconds())
	c.logger.Debug("committed",
		"commit", co.Hash.Short(),
		"parent", parent.Short(),
		"writes", len(req.Diff.Writes),
		"removals", len(req.Diff.Removals))

	return Result{Commit: co.Hash, Parent: parent, Tree: root, Committed: true}, nil
}

func displayHash(h object.Hash) string {
	if h.IsZero() {
		return "empty"
	}
	return h.Short()
}
