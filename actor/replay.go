package actor

import (
	"context"
	"encoding/json"
	"errors"
)

// ExecuteFunc is an actor's user code. It must read all external
// non-determinism only through the Core primitives (UpdateState,
// CallActivity, SpawnChild, WaitForEvent); wall-clock reads, randomness,
// network calls, and mutation of external state are disallowed outside
// activities, per the determinism contract.
type ExecuteFunc func(ctx context.Context, c *Core, input json.RawMessage) error

// Outcome classifies how an invocation of execute ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeSuspendedActivity
	OutcomeSuspendedEvent
	OutcomeFailed
)

// Result is what the runtime's dispatch loop receives after invoking an
// actor. Suspensions are not failures.
type Result struct {
	Outcome   Outcome
	Suspend   error // *ActivitySuspend or *EventSuspend, set when Outcome is one of the Suspended* values
	Err       error // set when Outcome == OutcomeFailed
}

func classify(err error) Result {
	if err == nil {
		return Result{Outcome: OutcomeCompleted}
	}
	var as *ActivitySuspend
	if errors.As(err, &as) {
		return Result{Outcome: OutcomeSuspendedActivity, Suspend: err}
	}
	var es *EventSuspend
	if errors.As(err, &es) {
		return Result{Outcome: OutcomeSuspendedEvent, Suspend: err}
	}
	return Result{Outcome: OutcomeFailed, Err: err}
}

// RunForward invokes execute on a freshly activated or already-hydrated
// core in forward (non-replaying) mode. It records the invocation before
// user code runs.
func RunForward(ctx context.Context, c *Core, execute ExecuteFunc, input json.RawMessage) Result {
	c.SetReplaying(false)
	if err := c.RecordInvocation(input); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	err := execute(ctx, c, input)
	return classify(err)
}

// Replay re-invokes execute from the start of the core's retained journal.
// On a core that has already run (a live, pooled instance), it first undoes
// the state patches consumed so far and rewinds the cursor and id counters;
// on a core fresh from LoadFrom there is nothing to undo. isReplaying is
// cleared in every exit path, matching the determinism contract's "clear
// isReplaying in all exit paths" requirement. Any suspend sentinel raised
// during replay is benign: it means replay has caught up to a live
// suspension point.
func Replay(ctx context.Context, c *Core, execute ExecuteFunc) Result {
	for i := c.cursor - 1; i >= 0; i-- {
		if c.entries[i].Type == EntryStatePatches {
			if err := Apply(c.state, c.entries[i].Inverse); err != nil {
				return Result{Outcome: OutcomeFailed, Err: err}
			}
		}
	}
	c.cursor, c.activityCounter, c.childCounter = 0, 0, 0
	c.SetReplaying(true)
	defer c.SetReplaying(false)

	if err := c.RecordInvocation(nil); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	err := execute(ctx, c, nil)
	return classify(err)
}

// ResumeWithActivity appends the activity's recorded completion and then
// replays execute from the beginning, so every previously recorded decision
// reproduces deterministically and the cursor advances to the new
// suspension (or completion).
func ResumeWithActivity(ctx context.Context, c *Core, execute ExecuteFunc, activityID string, result any) Result {
	if err := c.AppendActivityCompleted(activityID, result); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return Replay(ctx, c, execute)
}

// ResumeWithActivityError is the failure counterpart of ResumeWithActivity.
func ResumeWithActivityError(ctx context.Context, c *Core, execute ExecuteFunc, activityID string, failureMsg string) Result {
	if err := c.AppendActivityFailed(activityID, failureMsg); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return Replay(ctx, c, execute)
}

// Resume appends a received external event and replays execute from the
// beginning.
func Resume(ctx context.Context, c *Core, execute ExecuteFunc, eventType string, data any) Result {
	if err := c.AppendEventReceived(eventType, data); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	return Replay(ctx, c, execute)
}
