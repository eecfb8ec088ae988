package object

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. It is safe for concurrent use and is
// intended for tests and throwaway repositories.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[Hash]Object
	head    Hash
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[Hash]Object)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, h Hash) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Object{}, errClosed
	}
	o, ok := m.objects[h]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return o, nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, objs ...Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, o := range objs {
		if err := o.Verify(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	for _, o := range objs {
		if _, ok := m.objects[o.Hash]; ok {
			continue
		}
		data := make([]byte, len(o.Data))
		copy(data, o.Data)
		m.objects[o.Hash] = Object{Hash: o.Hash, Kind: o.Kind, Data: data}
	}
	return nil
}

// Head implements Store.
func (m *MemoryStore) Head(ctx context.Context) (Hash, error) {
	if err := ctx.Err(); err != nil {
		return ZeroHash, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ZeroHash, errClosed
	}
	return m.head, nil
}

// UpdateHead implements Store.
func (m *MemoryStore) UpdateHead(ctx context.Context, old, new Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if m.head != old {
		return ErrHeadMoved
	}
	m.head = new
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
