package object

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned by Store.Get for an unknown hash.
	ErrObjectNotFound = errors.New("object not found")

	// ErrHeadMoved is returned by Store.UpdateHead when the current head
	// does not match the expected old value.
	ErrHeadMoved = errors.New("head moved")

	errClosed = errors.New("store closed")
)

// Store is the versioned object store contract.
//
// Implementations must make Put durable before returning and must make
// UpdateHead an atomic compare-and-swap: the head changes from old to new
// only if it currently equals old, otherwise ErrHeadMoved is returned and
// the head is left untouched.
type Store interface {
	// Get returns the object with the given hash or ErrObjectNotFound.
	Get(ctx context.Context, h Hash) (Object, error)

	// Put stores objects. Storing an object that already exists is a no-op.
	Put(ctx context.Context, objs ...Object) error

	// Head returns the current head commit, or ZeroHash for an empty history.
	Head(ctx context.Context) (Hash, error)

	// UpdateHead advances the head from old to new.
	UpdateHead(ctx context.Context, old, new Hash) error

	// Close releases resources held by the store.
	Close() error
}

// ReadBlob returns the raw bytes of a blob.
func ReadBlob(ctx context.Context, s Store, h Hash) ([]byte, error) {
	o, err := get(ctx, s, h, KindBlob)
	if err != nil {
		return nil, err
	}
	return o.Data, nil
}

// WriteBlob stores raw bytes and returns their hash.
func WriteBlob(ctx context.Context, s Store, data []byte) (Hash, error) {
	o := NewBlob(data)
	if err := s.Put(ctx, o); err != nil {
		return ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	return o.Hash, nil
}

// ReadTree loads and decodes a tree.
func ReadTree(ctx context.Context, s Store, h Hash) (*Tree, error) {
	o, err := get(ctx, s, h, KindTree)
	if err != nil {
		return nil, err
	}
	return DecodeTree(o)
}

// WriteTree encodes and stores a tree.
func WriteTree(ctx context.Context, s Store, t Tree) (Hash, error) {
	o, err := EncodeTree(t)
	if err != nil {
		return ZeroHash, err
	}
	if err := s.Put(ctx, o); err != nil {
		return ZeroHash, fmt.Errorf("write tree: %w", err)
	}
	return o.Hash, nil
}

// ReadCommit loads and decodes a commit.
func ReadCommit(ctx context.Context, s Store, h Hash) (*Commit, error) {
	o, err := get(ctx, s, h, KindCommit)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(o)
}

// CreateCommit encodes and stores a commit. It does not move the head.
func CreateCommit(ctx context.Context, s Store, c Commit) (Hash, error) {
	o, err := EncodeCommit(c)
	if err != nil {
		return ZeroHash, err
	}
	if err := s.Put(ctx, o); err != nil {
		return ZeroHash, fmt.Errorf("create commit: %w", err)
	}
	return o.Hash, nil
}

func get(ctx context.Context, s Store, h Hash, kind Kind) (Object, error) {
	o, err := s.Get(ctx, h)
	if err != nil {
		return Object{}, fmt.Errorf("read %s %s: %w", kind, h.Short(), err)
	}
	if o.Kind != kind {
		return Object{}, fmt.Errorf("read %s %s: object is a %s", kind, h.Short(), o.Kind)
	}
	return o, nil
}
