package runtime

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/certo-ventures/loom/actor"
	"github.com/certo-ventures/loom/journal"
	"github.com/certo-ventures/loom/lock"
	"github.com/certo-ventures/loom/queue"
	"github.com/certo-ventures/loom/statestore"
	"github.com/certo-ventures/loom/trace"
	"go.uber.org/zap"
)

// lockTTL is how long an actor's activation lock is held before it must be
// extended, per spec.md §4.3's "lease renewed while work is in flight".
const lockTTL = 15 * time.Second

// lockExtendInterval is how often a held lock's lease is renewed while a
// dispatch is in flight, kept well under lockTTL so a slow GC pause or
// scheduling hiccup doesn't let the lease lapse before the next renewal.
const lockExtendInterval = lockTTL / 3

// instance is one hydrated actor pinned in the Pool: its Core plus the
// bookkeeping the eviction policy needs.
type instance struct {
	actorID   string
	actorType string
	core      *actor.Core
	execute   actor.ExecuteFunc
	priority  actor.EvictionPriority
	lastUsed  time.Time
	elem      *list.Element // this instance's node in its priority tier's LRU list

	// persistedUpTo is how many of core.Entries() have already been
	// appended to the journal store.
	persistedUpTo int
}

// Pool caches hydrated actor instances in memory, evicting the
// least-recently-used instance from the lowest-priority non-empty tier
// when full, grounded on other_examples' ActorPool (a mutex-guarded slice
// of capacity-limited slots with a wake-up channel), generalized here from
// "N fixed provider slots" to "LRU eviction across eviction-priority
// tiers" to match an actor instance's documented EvictionPriority.
type Pool struct {
	mu       sync.Mutex
	capacity int
	size     int
	tiers    map[actor.EvictionPriority]*list.List // each element's Value is *instance
	byID     map[string]*instance
}

// NewPool constructs a Pool that holds at most capacity hydrated instances
// at once. capacity <= 0 means unbounded.
func NewPool(capacity int) *Pool {
	return &Pool{
		capacity: capacity,
		tiers: map[actor.EvictionPriority]*list.List{
			actor.EvictionLow:    list.New(),
			actor.EvictionMedium: list.New(),
			actor.EvictionHigh:   list.New(),
		},
		byID: make(map[string]*instance),
	}
}

// get returns the cached instance for actorID, touching it to the front of
// its tier's LRU list (most-recently-used end).
func (p *Pool) get(actorID string) (*instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.byID[actorID]
	if !ok {
		return nil, false
	}
	inst.lastUsed = time.Now()
	tier := p.tiers[priorityOf(inst)]
	tier.MoveToFront(inst.elem)
	return inst, true
}

// put admits inst into the pool, evicting the least-recently-used instance
// from the lowest non-empty priority tier (low before medium before high)
// if the pool is at capacity.
func (p *Pool) put(inst *instance, priority actor.EvictionPriority) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.capacity > 0 && p.size >= p.capacity {
		p.evictLocked()
	}

	tier := p.tiers[priority]
	inst.elem = tier.PushFront(inst)
	inst.lastUsed = time.Now()
	p.byID[inst.actorID] = inst
	p.size++
}

func priorityOf(inst *instance) actor.EvictionPriority {
	// Stored alongside the instance via the tier it lives in; recovered by
	// linear scan across tiers is unnecessary because put always records
	// which tier an instance entered. See evictLocked for tier iteration
	// order.
	return inst.priority
}

// evictLocked drops the least-recently-used instance from the first
// non-empty tier, preferring low priority, then medium, then high. Callers
// must hold p.mu.
func (p *Pool) evictLocked() {
	for _, tier := range []actor.EvictionPriority{actor.EvictionLow, actor.EvictionMedium, actor.EvictionHigh} {
		list := p.tiers[tier]
		back := list.Back()
		if back == nil {
			continue
		}
		evicted := back.Value.(*instance)
		list.Remove(back)
		delete(p.byID, evicted.actorID)
		p.size--
		return
	}
}

// remove drops actorID from the pool unconditionally, e.g. after the
// actor's journal is deleted.
func (p *Pool) remove(actorID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.byID[actorID]
	if !ok {
		return
	}
	p.tiers[priorityOf(inst)].Remove(inst.elem)
	delete(p.byID, actorID)
	p.size--
}

// Runtime is the Actor Runtime (spec component C8): it wires a Registry,
// an instance Pool, a lock.Manager (to serialize concurrent activation of
// the same actor), a journal.Store and statestore.Store (to hydrate and
// persist actor state), and a trace.Emitter. It implements both
// queue.Dispatcher (the Queue Worker's activation hook) and
// workflow/executor.ActorDispatcher (an Actor workflow action's
// invocation hook).
type Runtime struct {
	Registry   *Registry
	Pool       *Pool
	Locks      lock.Manager
	Journal    journal.Store
	StateStore statestore.Store
	Trace      trace.Emitter
	Log        *zap.Logger

	concurrency map[string]chan struct{} // actorType -> semaphore, sized by Config.Concurrency
	concMu      sync.Mutex
}

// NewRuntime wires the given collaborators into a ready-to-use Runtime.
// poolCapacity bounds the number of hydrated instances held in memory at
// once (0 = unbounded). logger defaults to zap.NewNop() when nil.
func NewRuntime(registry *Registry, locks lock.Manager, journalStore journal.Store, stateStore statestore.Store, tracer trace.Emitter, poolCapacity int, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		Registry:    registry,
		Pool:        NewPool(poolCapacity),
		Locks:       locks,
		Journal:     journalStore,
		StateStore:  stateStore,
		Trace:       tracer,
		Log:         logger,
		concurrency: make(map[string]chan struct{}),
	}
}

// holdLock acquires key's lease and keeps renewing it on lockExtendInterval
// until the returned release func is called, logging (but not failing the
// dispatch on) a renewal that finds the lease already gone. The caller must
// always invoke release, typically via defer, to stop the renewal loop and
// give up the lease.
func (r *Runtime) holdLock(ctx context.Context, key string) (release func(), ok bool, err error) {
	l, ok, err := r.Locks.Acquire(ctx, key, lockTTL)
	if err != nil || !ok {
		return nil, ok, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(lockExtendInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := r.Locks.Extend(ctx, l, lockTTL); err != nil {
					r.Log.Warn("lock extend failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		_ = r.Locks.Release(ctx, l)
	}, true, nil
}

func (r *Runtime) emit(eventType trace.EventType, actorID string, status trace.Status) {
	if r.Trace == nil {
		return
	}
	r.Trace.Emit(trace.Span{
		EventType: eventType,
		Timestamp: time.Now(),
		Status:    status,
		Refs:      &trace.Refs{ActorState: &trace.ActorStateRef{ActorID: actorID}},
	})
}

// sem returns (creating if necessary) the concurrency-limiting semaphore
// for actorType, sized by def.Config.Concurrency (0 or negative means
// unbounded, represented by a nil channel that never blocks a send).
func (r *Runtime) sem(actorType string, def ActorTypeDef) chan struct{} {
	r.concMu.Lock()
	defer r.concMu.Unlock()
	if s, ok := r.concurrency[actorType]; ok {
		return s
	}
	var s chan struct{}
	if def.Config.Concurrency > 0 {
		s = make(chan struct{}, def.Config.Concurrency)
	}
	r.concurrency[actorType] = s
	return s
}

// activate returns a hydrated instance for (actorType, actorID), either
// from the Pool or by replaying the actor's journal from its latest
// snapshot, per spec.md §4.1.
func (r *Runtime) activate(ctx context.Context, actorType, actorID string, def ActorTypeDef) (*instance, error) {
	if inst, ok := r.Pool.get(actorID); ok {
		return inst, nil
	}

	snap, err := r.Journal.GetLatestSnapshot(ctx, actorID)
	if err != nil && err != journal.ErrNotFound {
		return nil, fmt.Errorf("runtime: load snapshot for %s: %w", actorID, err)
	}
	var snapPtr *actor.Snapshot
	if err == nil {
		snapPtr = &snap
	}

	entries, err := r.Journal.ReadEntries(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("runtime: read entries for %s: %w", actorID, err)
	}
	trailing := entries
	if snapPtr != nil {
		trailing = trimBeforeCursor(entries, snapPtr.Cursor)
	}

	core := actor.NewCore(actor.Context{ActorID: actorID, ActorType: actorType}, def.Config)
	if snapPtr != nil || len(trailing) > 0 {
		core.LoadFrom(snapPtr, trailing)
		result := actor.Replay(ctx, core, def.Execute)
		if result.Outcome == actor.OutcomeFailed {
			return nil, fmt.Errorf("runtime: replay %s: %w", actorID, result.Err)
		}
	}

	inst := &instance{
		actorID: actorID, actorType: actorType, core: core, execute: def.Execute,
		priority: def.Config.EvictionPriority, persistedUpTo: len(trailing),
	}
	r.Pool.put(inst, def.Config.EvictionPriority)
	return inst, nil
}

func trimBeforeCursor(entries []actor.Entry, cursor int) []actor.Entry {
	if cursor >= len(entries) {
		return nil
	}
	return entries[cursor:]
}

// persist appends the instance's entries produced since its last persisted
// cursor and advisedly snapshots, per spec.md §4.2's compaction policy
// (left to the Core/Config threshold, already enforced in actor.Core).
func (r *Runtime) persist(ctx context.Context, inst *instance) {
	for _, e := range inst.core.Entries()[inst.persistedUpTo:] {
		if err := r.Journal.AppendEntry(ctx, inst.actorID, e); err != nil {
			r.Log.Error("journal append failed", zap.String("actor_id", inst.actorID), zap.Error(err))
			r.emit("persist_failed", inst.actorID, trace.StatusError)
		}
	}
	inst.persistedUpTo = len(inst.core.Entries())
}

// Dispatch implements queue.Dispatcher: it activates the message's actor,
// runs its execute function forward (fresh invocation) or resumes it
// (activity result / event), and persists any new journal entries.
func (r *Runtime) Dispatch(ctx context.Context, msg queue.Message) (queue.DispatchOutcome, error) {
	def, ok := r.Registry.Lookup(msg.ActorType)
	if !ok {
		return queue.DispatchCompleted, fmt.Errorf("runtime: unknown actor type %q", msg.ActorType)
	}

	if sem := r.sem(msg.ActorType, def); sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			return queue.DispatchCompleted, ctx.Err()
		}
	}

	release, ok, err := r.holdLock(ctx, msg.ActorID)
	if err != nil {
		return queue.DispatchCompleted, fmt.Errorf("runtime: acquire lock for %s: %w", msg.ActorID, err)
	}
	if !ok {
		return queue.DispatchCompleted, fmt.Errorf("runtime: actor %s is already active elsewhere", msg.ActorID)
	}
	defer release()

	inst, err := r.activate(ctx, msg.ActorType, msg.ActorID, def)
	if err != nil {
		return queue.DispatchCompleted, err
	}

	var result actor.Result
	switch msg.MessageType {
	case queue.MessageInvoke:
		result = actor.RunForward(ctx, inst.core, inst.execute, msg.Payload)
	case queue.MessageActivityResult:
		var body struct {
			ActivityID string          `json:"activity_id"`
			Result     json.RawMessage `json:"result"`
			Error      string          `json:"error"`
		}
		if err := json.Unmarshal(msg.Payload, &body); err != nil {
			return queue.DispatchCompleted, fmt.Errorf("runtime: decode activity result: %w", err)
		}
		if body.Error != "" {
			result = actor.ResumeWithActivityError(ctx, inst.core, inst.execute, body.ActivityID, body.Error)
		} else {
			var res any
			_ = json.Unmarshal(body.Result, &res)
			result = actor.ResumeWithActivity(ctx, inst.core, inst.execute, body.ActivityID, res)
		}
	case queue.MessageEvent:
		var body struct {
			EventType string `json:"event_type"`
			Data      any    `json:"data"`
		}
		if err := json.Unmarshal(msg.Payload, &body); err != nil {
			return queue.DispatchCompleted, fmt.Errorf("runtime: decode event: %w", err)
		}
		result = actor.Resume(ctx, inst.core, inst.execute, body.EventType, body.Data)
	default:
		return queue.DispatchCompleted, fmt.Errorf("runtime: unknown message kind %q", msg.MessageType)
	}

	r.persist(ctx, inst)

	switch result.Outcome {
	case actor.OutcomeFailed:
		r.Log.Info("actor failed", zap.String("actor_id", msg.ActorID), zap.Error(result.Err))
		r.emit("actor_failed", msg.ActorID, trace.StatusError)
		return queue.DispatchCompleted, result.Err
	case actor.OutcomeSuspendedActivity, actor.OutcomeSuspendedEvent:
		r.emit("actor_suspended", msg.ActorID, trace.StatusOK)
		return queue.DispatchSuspended, nil
	default:
		r.emit("actor_completed", msg.ActorID, trace.StatusOK)
		return queue.DispatchCompleted, nil
	}
}

// DispatchActor implements workflow/executor.ActorDispatcher: a workflow
// Actor action synchronously invokes an actor type by name and returns its
// result, bypassing the queue for the common "call and wait" case.
// Suspension (the actor itself waiting on an activity/event) surfaces as
// an error; the workflow Retry/timeout machinery is expected to handle it
// the same way any other Actor action failure is handled.
func (r *Runtime) DispatchActor(ctx context.Context, actorType, actorID, method string, args any) (any, error) {
	def, ok := r.Registry.Lookup(actorType)
	if !ok {
		return nil, fmt.Errorf("runtime: unknown actor type %q", actorType)
	}

	payload, err := json.Marshal(map[string]any{"method": method, "args": args})
	if err != nil {
		return nil, fmt.Errorf("runtime: encode invocation: %w", err)
	}

	release, ok, err := r.holdLock(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("runtime: acquire lock for %s: %w", actorID, err)
	}
	if !ok {
		return nil, fmt.Errorf("runtime: actor %s is already active elsewhere", actorID)
	}
	defer release()

	inst, err := r.activate(ctx, actorType, actorID, def)
	if err != nil {
		return nil, err
	}

	result := actor.RunForward(ctx, inst.core, inst.execute, payload)
	r.persist(ctx, inst)

	switch result.Outcome {
	case actor.OutcomeFailed:
		return nil, result.Err
	case actor.OutcomeSuspendedActivity, actor.OutcomeSuspendedEvent:
		return nil, fmt.Errorf("runtime: actor %s suspended mid-call (not yet resumable from a synchronous Actor action)", actorID)
	default:
		raw, err := inst.core.State().MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("runtime: marshal state for %s: %w", actorID, err)
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("runtime: unmarshal state for %s: %w", actorID, err)
		}
		return out, nil
	}
}
