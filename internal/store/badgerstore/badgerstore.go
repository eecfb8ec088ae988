// Package badgerstore provides an object.Store backed by Badger, an embedded
// LSM key/value store. It is the alternative to the SQLite store for
// repositories with large blob payloads.
//
// Key layout:
//
//	o/<hash>  -> kind byte | uint64 size | zstd payload
//	ref/HEAD  -> hash
//
// The head is advanced inside a single read-write transaction; Badger's
// optimistic conflict detection turns a racing writer into ErrHeadMoved.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/store"
)

var headKey = []byte("ref/HEAD")

var kindBytes = map[object.Kind]byte{
	object.KindBlob:   'b',
	object.KindTree:   't',
	object.KindCommit: 'c',
}

// Store is a Badger-backed object.Store.
type Store struct {
	db *badger.DB
}

var _ object.Store = (*Store)(nil)

// Open opens or creates a Badger database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.WithLogger(&slogAdapter{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements object.Store.
func (s *Store) Get(ctx context.Context, h object.Hash) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(h))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return object.Object{}, object.ErrObjectNotFound
	}
	if err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}

	o, err := decodeValue(h, value)
	if err != nil {
		return object.Object{}, fmt.Errorf("get object %s: %w", h.Short(), err)
	}
	if err := o.Verify(); err != nil {
		return object.Object{}, fmt.Errorf("get object: %w", err)
	}
	return o, nil
}

// Put implements object.Store. Objects are written in one write batch.
func (s *Store) Put(ctx context.Context, objs ...object.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, o := range objs {
		if err := o.Verify(); err != nil {
			return fmt.Errorf("put objects: %w", err)
		}
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, o := range objs {
		if err := wb.Set(objectKey(o.Hash), encodeValue(o)); err != nil {
			return fmt.Errorf("put object %s: %w", o.Hash.Short(), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("put objects: flush: %w", err)
	}
	return nil
}

// Head implements object.Store.
func (s *Store) Head(ctx context.Context) (object.Hash, error) {
	if err := ctx.Err(); err != nil {
		return object.ZeroHash, err
	}

	var head object.Hash
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		head, err = readHead(txn)
		return err
	})
	if err != nil {
		return object.ZeroHash, fmt.Errorf("read head: %w", err)
	}
	return head, nil
}

// UpdateHead implements object.Store.
func (s *Store) UpdateHead(ctx context.Context, old, new object.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if new.IsZero() {
		return fmt.Errorf("update head: new head is empty")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readHead(txn)
		if err != nil {
			return err
		}
		if current != old {
			return object.ErrHeadMoved
		}
		return txn.Set(headKey, []byte(new))
	})
	if errors.Is(err, badger.ErrConflict) {
		return object.ErrHeadMoved
	}
	if errors.Is(err, object.ErrHeadMoved) {
		return err
	}
	if err != nil {
		return fmt.Errorf("update head: %w", err)
	}
	return nil
}

func readHead(txn *badger.Txn) (object.Hash, error) {
	item, err := txn.Get(headKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return object.ZeroHash, nil
	}
	if err != nil {
		return object.ZeroHash, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return object.ZeroHash, err
	}
	return object.Hash(v), nil
}

func objectKey(h object.Hash) []byte {
	return append([]byte("o/"), h...)
}

func encodeValue(o object.Object) []byte {
	packed := store.Compress(o.Data)
	buf := make([]byte, 9, 9+len(packed))
	buf[0] = kindBytes[o.Kind]
	binary.BigEndian.PutUint64(buf[1:9], uint64(len(o.Data)))
	return append(buf, packed...)
}

func decodeValue(h object.Hash, value []byte) (object.Object, error) {
	if len(value) < 9 {
		return object.Object{}, fmt.Errorf("value too short (%d bytes)", len(value))
	}
	var kind object.Kind
	for k, b := range kindBytes {
		if b == value[0] {
			kind = k
		}
	}
	if kind == "" {
		return object.Object{}, fmt.Errorf("unknown kind byte %q", value[0])
	}
	size := binary.BigEndian.Uint64(value[1:9])
	data, err := store.Decompress(value[9:], int64(size))
	if err != nil {
		return object.Object{}, err
	}
	return object.Object{Hash: h, Kind: kind, Data: data}, nil
}

// slogAdapter routes Badger's printf-style logging into slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
