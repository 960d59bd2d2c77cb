package inmemorystore

import (
	"bytes"
	"context"
	"sync"

	"github.com/specialistvlad/toucan/internal/kvstore"
)

// Store is an in-memory implementation of kvstore.Store using sync.Map.
type Store struct {
	values sync.Map // Key: string, Value: []byte
}

// New creates a new, empty in-memory store.
func New() kvstore.Store {
	return &Store{}
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.values.Load(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v.([]byte)), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := bytes.Clone(value)
	if stored == nil {
		stored = []byte{}
	}
	s.values.Store(key, stored)
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.values.Delete(key)
	return nil
}

// Close is a no-op; the values are simply dropped with the store.
func (s *Store) Close() error {
	return nil
}
