// Package storage defines the key-value persistence boundary used by the
// preset manager and the transcription history.
//
// The contract is deliberately small — batched get, batched set, delete —
// with last-write-wins semantics and no transactionality, mirroring the
// extension-style storage the rest of the system is written against. Two
// implementations are provided: [MemStore] for tests and single-process use,
// and the PostgreSQL-backed store in the postgres subpackage.
package storage

import (
	"context"
	"sync"
)

// KV is the key-value store boundary. Implementations must be safe for
// concurrent use. Writes are last-write-wins; no ordering is guaranteed
// between concurrent Set calls touching the same key.
type KV interface {
	// Get returns the values for the requested keys. Missing keys are
	// simply absent from the result map; Get never fails because of them.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Set stores every entry in values.
	Set(ctx context.Context, values map[string][]byte) error

	// Delete removes the given keys. Deleting an absent key is a no-op.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns all stored keys that begin with prefix, in unspecified
	// order. An empty prefix returns every key.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Compile-time assertion that MemStore satisfies KV.
var _ KV = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [KV]. The zero value is ready to use.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Get implements [KV.Get].
func (s *MemStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

// Set implements [KV.Set].
func (s *MemStore) Set(ctx context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string][]byte, len(values))
	}
	for k, v := range values {
		cp := make([]byte, len(v))
		copy(cp, v)
		s.data[k] = cp
	}
	return nil
}

// Delete implements [KV.Delete].
func (s *MemStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Keys implements [KV.Keys].
func (s *MemStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for k := range s.data {
		if prefix == "" || len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}
