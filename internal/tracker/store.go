package tracker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pwnholic/urltrack/internal"
)

// Store is the ordered list of entries. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewStore() *Store {
	return &Store{}
}

// Add validates e and appends it, returning its index.
func (s *Store) Add(e Entry) (int, error) {
	e.URL = strings.TrimSpace(e.URL)
	if err := ValidateEntry(e); err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e.clone())
	idx := len(s.entries) - 1
	internal.Debug("Added entry %d: %s (%d screenshots)", idx+1, e.URL, len(e.Screenshots))
	return idx, nil
}

// Update replaces the entry at index i wholesale.
func (s *Store) Update(i int, e Entry) error {
	e.URL = strings.TrimSpace(e.URL)
	if err := ValidateEntry(e); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.entries[i] = e.clone()
	internal.Debug("Updated entry %d: %s", i+1, e.URL)
	return nil
}

func (s *Store) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	internal.Debug("Removed entry %d", i+1)
	return nil
}

func (s *Store) Get(i int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkIndex(i); err != nil {
		return Entry{}, err
	}
	return s.entries[i].clone(), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a point-in-time copy of all entries. Later mutations of
// the store are not visible through it.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

func (s *Store) checkIndex(i int) error {
	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(s.entries))
	}
	return nil
}
