package repo

import (
	"log/slog"
	"time"

	"github.com/roach88/recordtree/internal/diff"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/schema"
	"github.com/roach88/recordtree/internal/txn"
)

// Backend names accepted by WithBackend.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// DefaultMaxRetries is the number of times a conflicting commit is retried.
const DefaultMaxRetries = 3

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithClock sets the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithMaxRetries bounds automatic retries on concurrent modification.
// Zero disables retrying.
func WithMaxRetries(n int) Option {
	return func(r *Repository) { r.maxRetries = max(n, 0) }
}

// WithWriteTimeout bounds the wait for the write lock. Zero waits until
// the context is done.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Repository) { r.writeTimeout = d }
}

// WithPlaceholderRecords selects how records with no attributes and no
// blobs are saved: rejected (false, the default) or stored with a
// .placeholder file (true).
func WithPlaceholderRecords(enabled bool) Option {
	return func(r *Repository) {
		r.policy = diff.DisallowEmpty
		if enabled {
			r.policy = diff.PlaceholderEmpty
		}
	}
}

// WithSchema sets the schema registry used to fill defaults.
func WithSchema(s *schema.Registry) Option {
	return func(r *Repository) { r.schema = s }
}

// WithAuthor sets the commit author.
func WithAuthor(a txn.Author) Option {
	return func(r *Repository) { r.author = a }
}

// WithBackend selects the object store backend opened under the root.
func WithBackend(name string) Option {
	return func(r *Repository) { r.backend = name }
}

// WithStore uses an already opened store. The caller keeps ownership and
// Close does not close it.
func WithStore(s object.Store) Option {
	return func(r *Repository) { r.store = s }
}

// WithMetrics sets the commit metrics sink.
func WithMetrics(m *txn.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// WithReadConcurrency bounds the number of records FindAll loads at once.
func WithReadConcurrency(n int) Option {
	return func(r *Repository) { r.readConcurrency = n }
}
