package activity

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the activity store spec.md §4.6 asks the Activity action to
// register into: a name -> Tool mapping.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool under its own Name(), replacing any existing
// registration for that name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Lookup returns the Tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Host adapts a Registry to workflow/executor.ActivityHost: it looks up
// the named activity and invokes it, converting its map output to `any` so
// the executor's expression evaluator can index into it with
// @actions('name').field.
type Host struct {
	Registry *Registry
}

// NewHost wraps registry as an executor.ActivityHost.
func NewHost(registry *Registry) *Host {
	return &Host{Registry: registry}
}

// RunActivity implements workflow/executor.ActivityHost.
func (h *Host) RunActivity(ctx context.Context, name string, input any) (any, error) {
	t, ok := h.Registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("activity: no activity registered with name %q", name)
	}
	in, _ := input.(map[string]interface{})
	out, err := t.Call(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any(out), nil
}
