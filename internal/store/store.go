package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/recordtree/internal/object"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on objects.kind for history scans
const currentSchemaVersion = 1

// headRef is the name of the single reference recordtree maintains.
const headRef = "HEAD"

// Store is a SQLite-backed object.Store.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

var _ object.Store = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements object.Store.
func (s *Store) Get(ctx context.Context, h object.Hash) (object.Object, error) {
	var kind string
	var size int64
	var packed []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, size, data FROM objects WHERE hash = ?
	`, string(h)).Scan(&kind, &size, &packed)
	if errors.Is(err, sql.ErrNoRows) {
		return object.Object{}, object.ErrObjectNotFound
	}
	if err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}

	data, err := Decompress(packed, size)
	if err != nil {
		return object.Object{}, fmt.Errorf("get object %s: %w", h.Short(), err)
	}

	o := object.Object{Hash: h, Kind: object.Kind(kind), Data: data}
	if err := o.Verify(); err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}
	return o, nil
}

// Put implements object.Store.
// All objects are inserted in one transaction; existing hashes are skipped.
func (s *Store) Put(ctx context.Context, objs ...object.Object) error {
	if len(objs) == 0 {
		return nil
	}
	for _, o := range objs {
		if err := o.Verify(); err != nil {
			return fmt.Errorf("put objects: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put objects: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO objects (hash, kind, size, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("put objects: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range objs {
		if _, err := stmt.ExecContext(ctx, string(o.Hash), string(o.Kind), len(o.Data), Compress(o.Data)); err != nil {
			return fmt.Errorf("put object %s: %w", o.Hash.Short(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put objects: commit: %w", err)
	}
	return nil
}

// Head implements object.Store.
func (s *Store) Head(ctx context.Context) (object.Hash, error) {
	var h string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM refs WHERE name = ?`, headRef).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return object.ZeroHash, nil
	}
	if err != nil {
		return object.ZeroHash, fmt.Errorf("read head: %w", err)
	}
	return object.Hash(h), nil
}

// UpdateHead implements object.Store as a single conditional statement.
func (s *Store) UpdateHead(ctx context.Context, old, new object.Hash) error {
	if new.IsZero() {
		return fmt.Errorf("update head: new head is empty")
	}

	var result sql.Result
	var err error
	if old.IsZero() {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO refs (name, hash) VALUES (?, ?)
			ON CONFLICT(name) DO NOTHING
		`, headRef, string(new))
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE refs SET hash = ? WHERE name = ? AND hash = ?
		`, string(new), headRef, string(old))
	}
	if err != nil {
		return fmt.Errorf("update head: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update head: rows affected: %w", err)
	}
	if n == 0 {
		return object.ErrHeadMoved
	}
	return nil
}

// Stats reports object counts by kind.
func (s *Store) Stats(ctx context.Context) (map[object.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM objects GROUP BY kind ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("object stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[object.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("object stats: scan: %w", err)
		}
		stats[object.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("object stats: iterate: %w", err)
	}
	return stats, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds an index on objects.kind used by Stats.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
