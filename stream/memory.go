package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemStore is an in-process Store, used for tests and single-process
// deployments.
type MemStore struct {
	mu      sync.Mutex
	chunks  map[string][]StreamChunk
	expired map[string]bool
}

// NewMemStore returns an empty, ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{chunks: make(map[string][]StreamChunk), expired: make(map[string]bool)}
}

func (m *MemStore) Publish(_ context.Context, streamID string, chunk StreamChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[streamID] = append(m.chunks[streamID], chunk)
	return nil
}

// Read returns the single chunk immediately after fromOffset, or an empty
// result if no such chunk exists yet. Offsets are 1-based chunk positions
// rendered as decimal strings, so "0" precedes the first chunk, mirroring
// Redis Streams' opaque-but-ordered IDs.
func (m *MemStore) Read(_ context.Context, streamID string, fromOffset string) (ReadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := 0
	if fromOffset != "" {
		n, err := strconv.Atoi(fromOffset)
		if err != nil || n < 0 {
			return ReadResult{}, fmt.Errorf("stream: invalid offset %q", fromOffset)
		}
		idx = n
	}

	all := m.chunks[streamID]
	if idx >= len(all) {
		return ReadResult{NextOffset: fromOffset}, nil
	}
	return ReadResult{Chunks: []StreamChunk{all[idx]}, NextOffset: strconv.Itoa(idx + 1)}, nil
}

func (m *MemStore) Expire(_ context.Context, streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired[streamID] = true
	return nil
}
