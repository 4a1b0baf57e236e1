package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// flakyActor fails the first N-1 calls to a given method, then succeeds.
type flakyActor struct {
	failUntil int
	calls     int
}

func (f *flakyActor) DispatchActor(_ context.Context, _, _, _ string, _ any) (any, error) {
	f.calls++
	if f.calls < f.failUntil {
		return nil, errors.New("transient failure")
	}
	return map[string]any{"ok": true}, nil
}

func TestRunRetry_SucceedsAfterTransientFailures(t *testing.T) {
	actors := &flakyActor{failUntil: 3}
	e := New(WithActorDispatcher(actors))
	inst := &Instance{Actions: map[string]any{}, Variables: map[string]any{}, Parameters: map[string]any{}}

	a := &wdl.Action{
		Type: wdl.ActionRetry,
		RetryPolicy: &wdl.RetryPolicy{
			Type: "fixed", Count: 5, Interval: "PT0.001S",
		},
		Action: &wdl.Action{Type: wdl.ActionActor, Inputs: map[string]any{"actorType": "x", "actorId": "y", "method": "run"}},
	}

	out, err := e.runRetry(context.Background(), inst, "retry1", a)
	if err != nil {
		t.Fatalf("runRetry() error = %v", err)
	}
	if actors.calls != 3 {
		t.Errorf("actors.calls = %d, want 3", actors.calls)
	}
	if out.(map[string]any)["ok"] != true {
		t.Errorf("got %v", out)
	}
}

func TestRunRetry_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	actors := &flakyActor{failUntil: 100}
	e := New(WithActorDispatcher(actors))
	inst := &Instance{Actions: map[string]any{}, Variables: map[string]any{}, Parameters: map[string]any{}}

	a := &wdl.Action{
		Type:        wdl.ActionRetry,
		RetryPolicy: &wdl.RetryPolicy{Type: "fixed", Count: 2, Interval: "PT0.001S"},
		Action:      &wdl.Action{Type: wdl.ActionActor, Inputs: map[string]any{"actorType": "x", "actorId": "y", "method": "run"}},
	}

	_, err := e.runRetry(context.Background(), inst, "retry1", a)
	if err == nil {
		t.Fatal("expected an error after exhausting retry attempts")
	}
	if actors.calls != 2 {
		t.Errorf("actors.calls = %d, want 2", actors.calls)
	}
}

func TestRunRetry_RequiresWrappedAction(t *testing.T) {
	e := New()
	inst := &Instance{Actions: map[string]any{}, Variables: map[string]any{}, Parameters: map[string]any{}}
	a := &wdl.Action{Type: wdl.ActionRetry}
	if _, err := e.runRetry(context.Background(), inst, "retry1", a); err == nil {
		t.Error("expected an error for a Retry action with no wrapped action")
	}
}
