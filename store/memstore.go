package store

import (
	"context"
	"sync"

	"github.com/da1nerd/gossip-crdts/crdt"
	"github.com/da1nerd/gossip-crdts/crdterr"
)

// MemStore is an in-memory Store, useful for tests and the demo
// command where a durable backend is not needed.
type MemStore struct {
	mu     sync.RWMutex
	snaps  map[string]crdt.Snapshot
	closed bool
}

func NewMemStore() *MemStore {
	return &MemStore{snaps: make(map[string]crdt.Snapshot)}
}

func (s *MemStore) Save(_ context.Context, id string, snap crdt.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return crdterr.NewStoreError("save", crdterr.ErrAlreadyClosed)
	}
	s.snaps[id] = snap
	return nil
}

func (s *MemStore) Load(_ context.Context, id string) (crdt.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, crdterr.NewStoreError("load", crdterr.ErrAlreadyClosed)
	}
	snap, ok := s.snaps[id]
	if !ok {
		return nil, crdterr.ErrNotFound
	}
	return snap, nil
}

func (s *MemStore) Has(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, crdterr.NewStoreError("has", crdterr.ErrAlreadyClosed)
	}
	_, ok := s.snaps[id]
	return ok, nil
}

func (s *MemStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, crdterr.NewStoreError("listIds", crdterr.ErrAlreadyClosed)
	}
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return crdterr.NewStoreError("remove", crdterr.ErrAlreadyClosed)
	}
	delete(s.snaps, id)
	return nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return crdterr.NewStoreError("clear", crdterr.ErrAlreadyClosed)
	}
	s.snaps = make(map[string]crdt.Snapshot)
	return nil
}

func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, crdterr.NewStoreError("stats", crdterr.ErrAlreadyClosed)
	}
	return Stats{Count: len(s.snaps)}, nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.snaps = nil
	return nil
}
