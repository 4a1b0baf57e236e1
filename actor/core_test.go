package actor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func nowForTest(seconds int) time.Time {
	return testEpoch.Add(time.Duration(seconds) * time.Second)
}

// sumActor implements S5: call an activity "sum", suspend, then resume with
// the activity's result and record it into state.
func sumActor(ctx context.Context, c *Core, input json.RawMessage) error {
	res, err := c.CallActivity("sum", map[string]int{"a": 3, "b": 4})
	if err != nil {
		return err
	}
	var total int
	if err := json.Unmarshal(res, &total); err != nil {
		return err
	}
	return c.UpdateState(func(s *State) {
		_ = s.Set("total", total)
	})
}

func TestCore_ActivitySuspendAndResume(t *testing.T) {
	ctx := context.Background()
	core := NewCore(Context{ActorID: "a1"}, DefaultConfig())

	result := RunForward(ctx, core, sumActor, nil)
	if result.Outcome != OutcomeSuspendedActivity {
		t.Fatalf("expected suspend, got outcome=%v err=%v", result.Outcome, result.Err)
	}
	suspend, ok := AsActivitySuspend(result.Suspend)
	if !ok {
		t.Fatalf("expected *ActivitySuspend, got %T", result.Suspend)
	}

	// Rehydrate as the runtime would after a crash/eviction: no snapshot yet,
	// full journal so far.
	entries := core.Entries()
	rehydrated := NewCore(Context{ActorID: "a1"}, DefaultConfig())
	rehydrated.LoadFrom(nil, entries)

	final := ResumeWithActivity(ctx, rehydrated, sumActor, suspend.ActivityID, 7)
	if final.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got outcome=%v err=%v", final.Outcome, final.Err)
	}

	var total int
	ok2, err := rehydrated.State().Get("total", &total)
	if err != nil || !ok2 || total != 7 {
		t.Fatalf("expected total=7, got %d ok=%v err=%v", total, ok2, err)
	}
}

func awaitApprovalActor(ctx context.Context, c *Core, input json.RawMessage) error {
	data, err := c.WaitForEvent("approval")
	if err != nil {
		return err
	}
	var approved bool
	if err := json.Unmarshal(data, &approved); err != nil {
		return err
	}
	return c.UpdateState(func(s *State) { _ = s.Set("approved", approved) })
}

func TestCore_EventSuspendAndResume(t *testing.T) {
	ctx := context.Background()
	core := NewCore(Context{ActorID: "a2"}, DefaultConfig())

	result := RunForward(ctx, core, awaitApprovalActor, nil)
	if result.Outcome != OutcomeSuspendedEvent {
		t.Fatalf("expected event suspend, got %v (%v)", result.Outcome, result.Err)
	}

	final := Resume(ctx, core, awaitApprovalActor, "approval", true)
	if final.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %v (%v)", final.Outcome, final.Err)
	}
	var approved bool
	if _, err := core.State().Get("approved", &approved); err != nil || !approved {
		t.Fatalf("expected approved=true, err=%v", err)
	}
}

func TestCore_ReplayMismatchOnDivergentCode(t *testing.T) {
	ctx := context.Background()
	core := NewCore(Context{ActorID: "a3"}, DefaultConfig())

	forwardFn := func(ctx context.Context, c *Core, input json.RawMessage) error {
		_, err := c.CallActivity("alpha", 1)
		return err
	}
	divergedFn := func(ctx context.Context, c *Core, input json.RawMessage) error {
		_, err := c.CallActivity("beta", 1)
		return err
	}

	_ = RunForward(ctx, core, forwardFn, nil)

	replayed := NewCore(Context{ActorID: "a3"}, DefaultConfig())
	replayed.LoadFrom(nil, core.Entries())
	result := Replay(ctx, replayed, divergedFn)

	if result.Outcome != OutcomeFailed || !errors.Is(result.Err, ErrReplayMismatch) {
		t.Fatalf("expected replay mismatch, got outcome=%v err=%v", result.Outcome, result.Err)
	}
}

func TestCore_CompactJournalRespectsThresholdAndCooldown(t *testing.T) {
	core := NewCore(Context{ActorID: "a4"}, Config{JournalCompactionThreshold: 2})
	_ = core.UpdateState(func(s *State) { _ = s.Set("x", 1) })

	if snap := core.CompactJournal(nowForTest(0)); snap != nil {
		t.Fatalf("expected no compaction below threshold")
	}

	_ = core.UpdateState(func(s *State) { _ = s.Set("x", 2) })
	snap := core.CompactJournal(nowForTest(10))
	if snap == nil {
		t.Fatalf("expected compaction once threshold reached")
	}
	if len(core.Entries()) != 0 {
		t.Fatalf("expected journal trimmed after compaction, got %d entries", len(core.Entries()))
	}

	// A second compaction attempt immediately after should be a no-op
	// (cooldown), even if new entries accumulate.
	_ = core.UpdateState(func(s *State) { _ = s.Set("y", 1) })
	_ = core.UpdateState(func(s *State) { _ = s.Set("y", 2) })
	if snap := core.CompactJournal(nowForTest(10)); snap != nil {
		t.Fatalf("expected cooldown to block immediate recompaction")
	}
}
