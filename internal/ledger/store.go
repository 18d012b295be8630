package ledger

import (
	"context"
	"sort"
	"sync"
)

// Store is the durable backing of the ledger. Implementations must make
// InsertIfAbsent and Replace atomic per key.
type Store interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	// InsertIfAbsent writes e unless the key exists; it returns the entry
	// that is stored afterwards and whether e was written.
	InsertIfAbsent(ctx context.Context, e Entry) (Entry, bool, error)
	// Replace overwrites the key only if it still holds expectedReleaseID.
	Replace(ctx context.Context, e Entry, expectedReleaseID string) (bool, error)
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, key Key) (bool, error)
}

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, e Entry) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[e.Key]; ok {
		return existing, false, nil
	}
	s.entries[e.Key] = e
	return e, true, nil
}

func (s *MemoryStore) Replace(_ context.Context, e Entry, expectedReleaseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[e.Key]
	if !ok || existing.ReleaseIndexID != expectedReleaseID {
		return false, nil
	}
	s.entries[e.Key] = e
	return true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.After(out[j].AcquiredAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}
