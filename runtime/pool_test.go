package runtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/certo-ventures/loom/actor"
	"github.com/certo-ventures/loom/journal"
	"github.com/certo-ventures/loom/lock"
	"github.com/certo-ventures/loom/queue"
)

// echoExecute records its input into state under "received" and never
// suspends, a minimal ExecuteFunc for exercising Dispatch/DispatchActor.
func echoExecute(_ context.Context, c *actor.Core, input json.RawMessage) error {
	return c.UpdateState(func(s *actor.State) {
		var v any
		_ = json.Unmarshal(input, &v)
		_ = s.Set("received", v)
	})
}

func newTestRuntime() *Runtime {
	reg := NewRegistry()
	reg.Register("echo", ActorTypeDef{Execute: echoExecute, Config: actor.DefaultConfig()})
	return NewRuntime(reg, lock.NewMemManager(nil), journal.NewMemStore(), nil, nil, 0, nil)
}

func TestRuntime_DispatchInvokesAndPersists(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()

	msg := queue.Message{
		ActorID:     "echo-1",
		ActorType:   "echo",
		MessageType: queue.MessageInvoke,
		Payload:     json.RawMessage(`{"hello":"world"}`),
	}

	outcome, err := rt.Dispatch(ctx, msg)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if outcome != queue.DispatchCompleted {
		t.Fatalf("Dispatch() outcome = %v, want DispatchCompleted", outcome)
	}

	entries, err := rt.Journal.ReadEntries(ctx, "echo-1")
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected journal entries to be persisted after Dispatch")
	}
}

func TestRuntime_DispatchRehydratesFromJournal(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()

	msg := queue.Message{
		ActorID:     "echo-2",
		ActorType:   "echo",
		MessageType: queue.MessageInvoke,
		Payload:     json.RawMessage(`{"n":1}`),
	}
	if _, err := rt.Dispatch(ctx, msg); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	// Evict the in-memory instance to force rehydration from the journal.
	rt.Pool.remove("echo-2")

	if _, err := rt.Dispatch(ctx, msg); err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}

	entries, err := rt.Journal.ReadEntries(ctx, "echo-2")
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	// Two invocations means at least two recorded invocation entries plus
	// their state_patches entries.
	if len(entries) < 4 {
		t.Fatalf("expected >= 4 entries across two invocations, got %d", len(entries))
	}
}

func TestRuntime_DispatchActorReturnsState(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()

	out, err := rt.DispatchActor(ctx, "echo", "echo-3", "run", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("DispatchActor() error = %v", err)
	}
	if out == nil {
		t.Fatal("expected non-nil state result")
	}
}

func TestRuntime_DispatchUnknownActorType(t *testing.T) {
	rt := newTestRuntime()
	ctx := context.Background()

	msg := queue.Message{ActorID: "x", ActorType: "nope", MessageType: queue.MessageInvoke}
	if _, err := rt.Dispatch(ctx, msg); err == nil {
		t.Fatal("expected error for unknown actor type")
	}
}

func TestPool_EvictsLeastRecentlyUsedFromLowestTier(t *testing.T) {
	p := NewPool(2)
	low := &instance{actorID: "low", priority: actor.EvictionLow, core: actor.NewCore(actor.Context{}, actor.Config{})}
	high := &instance{actorID: "high", priority: actor.EvictionHigh, core: actor.NewCore(actor.Context{}, actor.Config{})}
	p.put(low, actor.EvictionLow)
	p.put(high, actor.EvictionHigh)

	// Pool is now full; admitting a third instance must evict "low" (the
	// only occupant of the lowest-priority tier), not "high".
	extra := &instance{actorID: "extra", priority: actor.EvictionMedium, core: actor.NewCore(actor.Context{}, actor.Config{})}
	p.put(extra, actor.EvictionMedium)

	if _, ok := p.get("low"); ok {
		t.Error("expected low-priority instance to be evicted")
	}
	if _, ok := p.get("high"); !ok {
		t.Error("expected high-priority instance to survive eviction")
	}
}
