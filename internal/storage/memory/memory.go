// Package memory provides an in-process save slot store.
package memory

import (
	"context"
	"sync"

	"github.com/cory-johannsen/destiny/internal/game/state"
)

// SaveStore keeps save slots in a map. It is safe for concurrent use.
type SaveStore struct {
	mu    sync.RWMutex
	slots map[int][]byte
}

// NewSaveStore creates an empty SaveStore.
func NewSaveStore() *SaveStore {
	return &SaveStore{slots: map[int][]byte{}}
}

// Put stores a copy of data in slot.
func (s *SaveStore) Put(_ context.Context, slot int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the data in slot, or state.ErrNoSave.
func (s *SaveStore) Get(_ context.Context, slot int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.slots[slot]
	if !ok {
		return nil, state.ErrNoSave
	}
	return append([]byte(nil), data...), nil
}

// Delete empties slot.
func (s *SaveStore) Delete(_ context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
	return nil
}
