package memory

import (
	"context"
	"sync"
)

// SnapshotStore is an in-memory implementation of app.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{items: make(map[string][]byte)}
}

func (s *SnapshotStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *SnapshotStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), data...)
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
