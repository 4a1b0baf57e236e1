// Package runtime implements the Actor Runtime (spec component C8): a
// registry of actor types, an instance pool with eviction, message
// dispatch, and lock coordination around journal replay. Grounded on
// other_examples' dohr-michael-ozzie ActorPool (idle/busy instance
// tracking, scheduler wake-up channel), generalized from LLM capacity
// slots to actor-instance hydration and eviction.
package runtime

import (
	"fmt"
	"sync"

	"github.com/certo-ventures/loom/actor"
)

// ActorTypeDef is what the runtime needs to activate one actor type: its
// deterministic execution function and its infrastructure configuration.
type ActorTypeDef struct {
	Execute actor.ExecuteFunc
	Config  actor.Config
}

// Registry maps actor type names to their definitions.
type Registry struct {
	mu    sync.RWMutex
	types map[string]ActorTypeDef
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ActorTypeDef)}
}

// Register adds actorType's definition, replacing any existing one.
func (r *Registry) Register(actorType string, def ActorTypeDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[actorType] = def
}

// Lookup returns actorType's definition.
func (r *Registry) Lookup(actorType string) (ActorTypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[actorType]
	return def, ok
}

// MustLookup is a convenience for callers that treat an unknown actor type
// as a programming error rather than routine input.
func (r *Registry) MustLookup(actorType string) ActorTypeDef {
	def, ok := r.Lookup(actorType)
	if !ok {
		panic(fmt.Sprintf("runtime: no actor type registered: %q", actorType))
	}
	return def
}
