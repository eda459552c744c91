package history

import "context"

// MemoryStore keeps history in memory only. It backs tests and ephemeral
// runs where persistence across processes is not wanted.
type MemoryStore struct {
	set *Set
}

// NewMemoryStore creates a MemoryStore, optionally seeded with URLs.
func NewMemoryStore(seed ...string) *MemoryStore {
	return &MemoryStore{set: NewSetFrom(seed)}
}

// Load returns a copy of the stored set.
func (s *MemoryStore) Load(_ context.Context) (*Set, error) {
	return NewSetFrom(s.set.URLs()), nil
}

// Save replaces the stored set with a copy of the given one.
func (s *MemoryStore) Save(_ context.Context, set *Set) error {
	s.set = NewSetFrom(set.URLs())
	return nil
}
