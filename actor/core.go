package actor

import (
	"encoding/json"
	"fmt"
	"time"
)

// compactionCooldown is the minimum interval between automatic compactions,
// per spec.md §4.2 ("last compaction > 5s ago").
const compactionCooldown = 5 * time.Second

// Core holds an actor's current state and journal, and exposes the typed
// primitives user code (the actor's "execute" function) uses to interact
// with the outside world. Every primitive either appends a new journal
// entry (forward execution) or consumes the next entry at the replay
// cursor (replay) — user code never branches on isReplaying itself.
type Core struct {
	Ctx    Context
	Config Config

	state   *State
	entries []Entry
	cursor  int

	isReplaying     bool
	activityCounter int
	childCounter    int

	compacting     bool
	lastCompaction time.Time
}

// NewCore constructs a fresh Core with empty state and journal, ready for
// forward execution of a brand-new actor instance.
func NewCore(ctx Context, cfg Config) *Core {
	return &Core{Ctx: ctx, Config: cfg, state: NewState()}
}

// LoadFrom rehydrates a Core from a snapshot (or nil, meaning default
// state) plus the trailing entries recorded after the snapshot's cursor.
// It sets the core into replay mode; the caller is expected to re-invoke
// the actor's execute function, which will consume trailingEntries via the
// same primitives used during forward execution (updateState, callActivity,
// spawnChild, waitForEvent), reconstructing state incrementally exactly as
// it was originally derived — this is what makes "journal + default state
// fully determines current state" hold without a separate bulk-apply path.
func (c *Core) LoadFrom(snapshot *Snapshot, trailingEntries []Entry) {
	if snapshot != nil {
		c.state = snapshot.State.Clone()
	} else {
		c.state = NewState()
	}
	c.entries = trailingEntries
	c.cursor = 0
	c.isReplaying = true
	c.activityCounter = 0
	c.childCounter = 0
}

// State returns the current accumulated state. Callers must not mutate the
// returned value directly; go through UpdateState.
func (c *Core) State() *State { return c.state }

// IsReplaying reports whether the core is currently replaying its journal.
func (c *Core) IsReplaying() bool { return c.isReplaying }

// SetReplaying is used by the replay engine to clear isReplaying in every
// exit path once execute returns, per the determinism contract.
func (c *Core) SetReplaying(v bool) { c.isReplaying = v }

// Entries returns the in-memory journal entries appended since the last
// snapshot (or since the actor was created, if no snapshot exists yet).
func (c *Core) Entries() []Entry { return append([]Entry(nil), c.entries...) }

// Cursor returns the current replay cursor position.
func (c *Core) Cursor() int { return c.cursor }

// appendOrMatch is the shared primitive behind updateState/callActivity/
// spawnChild/waitForEvent: during forward execution it appends candidate to
// the journal; during replay it verifies the entry at the cursor matches
// and advances past it. matches is only consulted when the entry type
// matches; it should check variant-specific identity (activity id, event
// type, and so on).
func (c *Core) appendOrMatch(candidate Entry, matches func(Entry) bool) (Entry, error) {
	if c.isReplaying {
		if c.cursor >= len(c.entries) {
			// Replay has consumed every recorded entry: the actor is now
			// executing code it never reached before (new work past its last
			// suspension/resume). Switch to live execution and append, rather
			// than erroring, so replay-then-continue is not a dead end.
			c.isReplaying = false
		} else {
			got := c.entries[c.cursor]
			if got.Type != candidate.Type || (matches != nil && !matches(got)) {
				return Entry{}, ErrReplayMismatch
			}
			c.cursor++
			return got, nil
		}
	}
	candidate.Timestamp = time.Now().UTC()
	c.entries = append(c.entries, candidate)
	c.cursor++
	return candidate, nil
}

// RecordInvocation appends an invocation entry before the first user code
// runs, so the inbound message is part of the deterministic lineage. It is
// a no-op matcher during replay: the recorded invocation's payload is
// trusted as-is (the message itself is not replayed against anything).
func (c *Core) RecordInvocation(message json.RawMessage) error {
	_, err := c.appendOrMatch(Entry{Type: EntryInvocation, Message: message}, nil)
	return err
}

// UpdateState computes forward and inverse patches over a structural copy
// of the current state by invoking draft against the copy, then applies the
// forward patches to the real state. A state_patches entry is appended
// during forward execution; during replay the entry at the cursor must be a
// state_patches entry, and its forward patches (not a freshly recomputed
// diff) are applied, so replay reconstructs state purely from the journal.
func (c *Core) UpdateState(draft func(*State)) error {
	before := c.state
	scratch := before.Clone()
	draft(scratch)
	forward, inverse := diff(before, scratch)

	entry, err := c.appendOrMatch(Entry{Type: EntryStatePatches, Forward: forward, Inverse: inverse}, nil)
	if err != nil {
		return err
	}
	return Apply(c.state, entry.Forward)
}

// CompensateLastStateChange reverses the most recently appended
// state_patches entry by applying its inverse patches, restoring the prior
// state exactly. It is only valid to call outside replay.
func (c *Core) CompensateLastStateChange() error {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Type == EntryStatePatches {
			return Apply(c.state, c.entries[i].Inverse)
		}
	}
	return fmt.Errorf("actor: no state_patches entry to compensate")
}

// CallActivity schedules name with input. During forward execution it
// appends activity_scheduled and returns an *ActivitySuspend sentinel so
// the runtime can persist state and release the lock. During replay it
// matches the already-recorded completion or failure and returns (or
// returns an error for) accordingly; if replay has caught up to a live
// suspension point (the activity hasn't completed yet), it returns the same
// suspend sentinel, which is benign during replay per spec.md §4.2 step 3.
func (c *Core) CallActivity(name string, input any) (json.RawMessage, error) {
	id := fmt.Sprintf("act-%d", c.activityCounter)
	c.activityCounter++

	inputRaw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("actor: marshal activity input: %w", err)
	}

	_, err = c.appendOrMatch(Entry{Type: EntryActivityScheduled, ActivityID: id, ActivityName: name, Input: inputRaw},
		func(got Entry) bool { return got.ActivityID == id && got.ActivityName == name })
	if err != nil {
		return nil, err
	}

	if !c.isReplaying {
		return nil, &ActivitySuspend{ActivityID: id, Name: name, Input: inputRaw}
	}

	// Replaying: look for the completion/failure entry immediately following
	// the schedule entry we just matched.
	if c.cursor >= len(c.entries) {
		return nil, &ActivitySuspend{ActivityID: id, Name: name, Input: inputRaw}
	}
	next := c.entries[c.cursor]
	switch next.Type {
	case EntryActivityCompleted:
		if next.ActivityID != id {
			return nil, ErrReplayMismatch
		}
		c.cursor++
		return next.Result, nil
	case EntryActivityFailed:
		if next.ActivityID != id {
			return nil, ErrReplayMismatch
		}
		c.cursor++
		return nil, &Error{Message: next.FailureMsg, Code: "ACTIVITY_FAILED", ActorID: c.Ctx.ActorID}
	default:
		return nil, &ActivitySuspend{ActivityID: id, Name: name, Input: inputRaw}
	}
}

// SpawnChild derives a deterministic child id from the parent id plus a
// monotonic suffix, and records child_spawned.
func (c *Core) SpawnChild(childActorType string, input any) (string, error) {
	id := fmt.Sprintf("%s-child-%d", c.Ctx.ActorID, c.childCounter)
	c.childCounter++

	_, err := c.appendOrMatch(Entry{Type: EntryChildSpawned, ChildID: id, ChildType: childActorType},
		func(got Entry) bool { return got.ChildID == id })
	if err != nil {
		return "", err
	}
	return id, nil
}

// WaitForEvent appends suspended{reason:"awaiting_event:<type>"} and raises
// *EventSuspend. On replay it matches the suspended bracket and, if the
// matching event_received entry already follows, returns its payload;
// otherwise it returns the suspend sentinel again (replay caught up to a
// live suspension).
func (c *Core) WaitForEvent(eventType string) (json.RawMessage, error) {
	reason := "awaiting_event:" + eventType
	_, err := c.appendOrMatch(Entry{Type: EntrySuspended, Reason: reason}, func(got Entry) bool { return got.Reason == reason })
	if err != nil {
		return nil, err
	}

	if !c.isReplaying {
		return nil, &EventSuspend{EventType: eventType}
	}

	if c.cursor >= len(c.entries) {
		return nil, &EventSuspend{EventType: eventType}
	}
	next := c.entries[c.cursor]
	if next.Type != EntryEventReceived || next.EventType != eventType {
		return nil, &EventSuspend{EventType: eventType}
	}
	c.cursor++
	return next.EventData, nil
}

// AppendActivityCompleted records the result of a previously scheduled
// activity, to be consumed by a subsequent replay-from-scratch. It is
// idempotent: redelivery of the same completion for an id that already has
// a recorded outcome is a no-op.
func (c *Core) AppendActivityCompleted(activityID string, result any) error {
	if status := c.activityStatus(activityID); status != "" {
		return nil
	}
	if !c.hasScheduledActivity(activityID) {
		return ErrActivityNotFound
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("actor: marshal activity result: %w", err)
	}
	c.entries = append(c.entries, Entry{Type: EntryActivityCompleted, ActivityID: activityID, Result: raw, Timestamp: time.Now().UTC()})
	return nil
}

// AppendActivityFailed records a terminal failure for a previously
// scheduled activity.
func (c *Core) AppendActivityFailed(activityID string, failureMsg string) error {
	if status := c.activityStatus(activityID); status != "" {
		return nil
	}
	if !c.hasScheduledActivity(activityID) {
		return ErrActivityNotFound
	}
	c.entries = append(c.entries, Entry{Type: EntryActivityFailed, ActivityID: activityID, FailureMsg: failureMsg, Timestamp: time.Now().UTC()})
	return nil
}

// AppendEventReceived records an external event for a pending
// waitForEvent, to be consumed by a subsequent replay-from-scratch.
func (c *Core) AppendEventReceived(eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("actor: marshal event data: %w", err)
	}
	c.entries = append(c.entries, Entry{Type: EntryEventReceived, EventType: eventType, EventData: raw, Timestamp: time.Now().UTC()})
	return nil
}

func (c *Core) hasScheduledActivity(id string) bool {
	for _, e := range c.entries {
		if e.Type == EntryActivityScheduled && e.ActivityID == id {
			return true
		}
	}
	return false
}

// activityStatus returns "completed", "failed", or "" if the activity has
// no recorded outcome yet.
func (c *Core) activityStatus(id string) string {
	for _, e := range c.entries {
		switch {
		case e.Type == EntryActivityCompleted && e.ActivityID == id:
			return "completed"
		case e.Type == EntryActivityFailed && e.ActivityID == id:
			return "failed"
		}
	}
	return ""
}

// CompactJournal writes a snapshot at the current entry count and trims the
// in-memory journal, if the configured threshold is met and the cooldown
// since the last compaction has elapsed. It returns the snapshot taken (nil
// if no compaction occurred) so the caller can persist it via the Journal
// Store; compaction itself is advisory and never fails the invocation.
func (c *Core) CompactJournal(now time.Time) *Snapshot {
	if c.compacting {
		return nil
	}
	threshold := c.Config.JournalCompactionThreshold
	if threshold <= 0 || len(c.entries) < threshold {
		return nil
	}
	if !c.lastCompaction.IsZero() && now.Sub(c.lastCompaction) < compactionCooldown {
		return nil
	}
	c.compacting = true
	defer func() { c.compacting = false }()

	snap := &Snapshot{State: c.state.Clone(), Cursor: len(c.entries), Timestamp: now}
	c.entries = nil
	c.cursor = 0
	c.lastCompaction = now
	return snap
}
