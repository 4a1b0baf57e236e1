package metrics

import (
	"context"
	"sync"
)

// Probe checks whether one component (journal store, queue, lock manager,
// etc.) is reachable and healthy.
type Probe func(ctx context.Context) error

// HealthRegistry tracks named component probes and runs them on demand,
// grounded on evalgo-org-eve's registry.HealthCheck/HealthCheckAll
// (check-by-name and check-all-report-a-map) shape.
type HealthRegistry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{probes: make(map[string]Probe)}
}

// Register adds or replaces the probe for a named component.
func (h *HealthRegistry) Register(component string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[component] = probe
}

// Check runs the named component's probe.
func (h *HealthRegistry) Check(ctx context.Context, component string) (bool, error) {
	h.mu.RLock()
	probe, ok := h.probes[component]
	h.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := probe(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAll runs every registered probe and reports pass/fail per component.
func (h *HealthRegistry) CheckAll(ctx context.Context) map[string]bool {
	h.mu.RLock()
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	h.mu.RUnlock()

	results := make(map[string]bool, len(names))
	for _, name := range names {
		ok, _ := h.Check(ctx, name)
		results[name] = ok
	}
	return results
}
