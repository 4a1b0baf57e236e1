package journal

import (
	"context"
	"sync"

	"github.com/certo-ventures/loom/actor"
)

// MemStore is an in-memory Store, the same role graph/store.MemStore plays
// for the teacher: testing, single-process development, and short-lived
// actors where persistence isn't required. Thread-safe.
type MemStore struct {
	mu        sync.RWMutex
	entries   map[string][]actor.Entry
	snapshots map[string]actor.Snapshot
}

// NewMemStore creates an empty in-memory journal store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries:   make(map[string][]actor.Entry),
		snapshots: make(map[string]actor.Snapshot),
	}
}

func (m *MemStore) AppendEntry(_ context.Context, actorID string, entry actor.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[actorID] = append(m.entries[actorID], entry)
	return nil
}

func (m *MemStore) ReadEntries(_ context.Context, actorID string) ([]actor.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]actor.Entry, len(m.entries[actorID]))
	copy(out, m.entries[actorID])
	return out, nil
}

func (m *MemStore) SaveSnapshot(_ context.Context, actorID string, snap actor.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[actorID] = snap
	return nil
}

func (m *MemStore) GetLatestSnapshot(_ context.Context, actorID string) (actor.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[actorID]
	if !ok {
		return actor.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemStore) TrimEntries(_ context.Context, actorID string, beforeCursor int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entries[actorID]
	if beforeCursor >= len(entries) {
		m.entries[actorID] = nil
		return nil
	}
	if beforeCursor <= 0 {
		return nil
	}
	m.entries[actorID] = append([]actor.Entry(nil), entries[beforeCursor:]...)
	return nil
}

func (m *MemStore) DeleteJournal(_ context.Context, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, actorID)
	delete(m.snapshots, actorID)
	return nil
}
