package secrets

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"context"
)

// MemoryStore is an in-process Store, grounded on the teacher's
// store.MemStore mutex-guarded map idiom (graph/store/memory.go).
type MemoryStore struct {
	mu      sync.Mutex
	seq     map[string]int
	secrets map[string][]Secret // name -> versions, oldest first
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seq: make(map[string]int), secrets: make(map[string][]Secret)}
}

func (s *MemoryStore) GetSecret(_ context.Context, name, version string) (Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.secrets[name]
	if version != "" {
		for _, v := range versions {
			if v.Properties.Version == version {
				return v, nil
			}
		}
		return Secret{}, ErrNotFound
	}
	now := time.Now()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if !v.Properties.Enabled {
			continue
		}
		if v.Properties.ExpiresOn != nil && now.After(*v.Properties.ExpiresOn) {
			continue
		}
		return v, nil
	}
	return Secret{}, ErrNotFound
}

func (s *MemoryStore) SetSecret(_ context.Context, name, value string, opts SetOptions) (Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[name]++
	props := Properties{
		Name:        name,
		Version:     fmt.Sprintf("v%d", s.seq[name]),
		Enabled:     opts.Enabled,
		ExpiresOn:   opts.ExpiresOn,
		ContentType: opts.ContentType,
		Tags:        opts.Tags,
		CreatedAt:   time.Now(),
	}
	s.secrets[name] = append(s.secrets[name], Secret{Properties: props, Value: value})
	return props, nil
}

func (s *MemoryStore) DeleteSecret(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.secrets[name]
	if !ok {
		return ErrNotFound
	}
	for i := range versions {
		versions[i].Properties.Enabled = false
	}
	return nil
}

func (s *MemoryStore) ListSecrets(_ context.Context) ([]Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []Properties
	for name, versions := range s.secrets {
		for i := len(versions) - 1; i >= 0; i-- {
			v := versions[i]
			if !v.Properties.Enabled {
				continue
			}
			if v.Properties.ExpiresOn != nil && now.After(*v.Properties.ExpiresOn) {
				continue
			}
			out = append(out, v.Properties)
			break
		}
		_ = name
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetSecretValue satisfies executor.SecretsClient, adapting the richer
// Store interface to the single-value lookup @secret('name') needs.
func (s *MemoryStore) GetSecretValue(name string) (string, bool, error) {
	sec, err := s.GetSecret(context.Background(), name, "")
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sec.Value, true, nil
}
