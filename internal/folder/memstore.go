package folder

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store manages folder definitions. Implementations must be safe for
// concurrent use.
type Store interface {
	// Add creates a new folder, generating an ID when empty.
	// Returns [ErrDuplicateName] or [ErrDuplicatePhrase] on collisions.
	Add(ctx context.Context, f Folder) (Folder, error)

	// Get retrieves a folder by ID. Returns [ErrNotFound] when absent.
	Get(ctx context.Context, id string) (Folder, error)

	// List returns all folders in creation order. This is also the
	// activation-phrase match order used by [Match].
	List(ctx context.Context) ([]Folder, error)

	// Remove deletes a folder by ID. Returns [ErrNotFound] when absent.
	Remove(ctx context.Context, id string) error
}

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. Folders are kept in
// insertion order, which defines activation-phrase precedence.
type MemStore struct {
	mu      sync.RWMutex
	folders []Folder
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, f Folder) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.folders {
		if strings.EqualFold(existing.Name, f.Name) {
			return Folder{}, ErrDuplicateName
		}
		if f.ActivationPhrase != "" &&
			strings.EqualFold(strings.TrimSpace(existing.ActivationPhrase), strings.TrimSpace(f.ActivationPhrase)) {
			return Folder{}, ErrDuplicatePhrase
		}
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	s.folders = append(s.folders, f)
	return f, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.folders {
		if f.ID == id {
			return f, nil
		}
	}
	return Folder{}, ErrNotFound
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context) ([]Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Folder, len(s.folders))
	copy(out, s.folders)
	return out, nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, f := range s.folders {
		if f.ID == id {
			s.folders = append(s.folders[:i], s.folders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
