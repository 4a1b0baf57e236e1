package store

import (
	"context"
	"sync"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// MemoryStore is an in-process Store, grounded on the teacher's
// store.MemStore mutex-guarded map idiom (graph/store/memory.go).
type MemoryStore struct {
	mu       sync.Mutex
	versions map[string][]wdl.Version // workflowId -> versions, oldest first
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string][]wdl.Version)}
}

func (s *MemoryStore) Create(_ context.Context, id string, def wdl.Definition, meta wdl.VersionMetadata) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.versions[id]) > 0 {
		return wdl.Version{}, ErrAlreadyExists
	}
	meta.ID = id
	meta.Version = "1.0.0"
	v := wdl.Version{Metadata: meta, Definition: def}
	s.versions[id] = []wdl.Version{v}
	return v, nil
}

func (s *MemoryStore) Publish(_ context.Context, id string, def wdl.Definition, bump Bump) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.versions[id]
	if len(existing) == 0 {
		return wdl.Version{}, ErrNotFound
	}
	latest := existing[len(existing)-1]
	nextVersion, err := BumpVersion(latest.Metadata.Version, bump)
	if err != nil {
		return wdl.Version{}, err
	}
	meta := latest.Metadata
	meta.Version = nextVersion
	v := wdl.Version{Metadata: meta, Definition: def}
	s.versions[id] = append(existing, v)
	return v, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.versions[id]
	if len(existing) == 0 {
		return wdl.Version{}, ErrNotFound
	}
	return existing[len(existing)-1], nil
}

func (s *MemoryStore) GetVersion(_ context.Context, id, version string) (wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[id] {
		if v.Metadata.Version == version {
			return v, nil
		}
	}
	return wdl.Version{}, ErrNotFound
}

func (s *MemoryStore) ListVersions(_ context.Context, id string) ([]wdl.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.versions[id]
	if len(existing) == 0 {
		return nil, ErrNotFound
	}
	out := make([]wdl.Version, len(existing))
	copy(out, existing)
	return out, nil
}
