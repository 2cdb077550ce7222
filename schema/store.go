package schema

import "sync/atomic"

// Store holds the current Mapping behind an atomic pointer so a reload
// swaps the whole snapshot at once. In-flight translations keep the
// snapshot they started with and never observe a partially-updated schema.
type Store struct {
	current atomic.Pointer[Mapping]
}

// NewStore creates a store seeded with an initial mapping.
func NewStore(initial *Mapping) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Load returns the current mapping snapshot.
func (s *Store) Load() *Mapping {
	return s.current.Load()
}

// Replace installs a new mapping and returns the previous one.
func (s *Store) Replace(next *Mapping) *Mapping {
	return s.current.Swap(next)
}

// Reload parses and validates a new document and installs it only if the
// whole document validated. On error the current snapshot is untouched.
func (s *Store) Reload(data []byte) error {
	mapping, err := Parse(data)
	if err != nil {
		return err
	}
	s.current.Store(mapping)
	return nil
}
