package executor

import (
	"context"
	"time"

	"github.com/certo-ventures/loom/actor"
	"github.com/certo-ventures/loom/workflow/wdl"
)

// runRetry wraps a.Action with the retry backoff formulas from spec.md
// §4.4, reused verbatim for the workflow-level Retry action per §4.6. A
// retryPolicy omitted on the action defaults to exponential backoff with
// the same sensible defaults actor.DefaultConfig().RetryPolicy uses.
func (e *Executor) runRetry(ctx context.Context, inst *Instance, name string, a *wdl.Action) (any, error) {
	if a.Action == nil {
		return nil, errRetryNeedsAction(name)
	}
	policy := retryPolicyFromWDL(a.RetryPolicy)

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := e.dispatch(ctx, inst, name, a.Action)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt < policy.MaxAttempts {
			delay := actor.CalculateRetryDelay(policy, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func retryPolicyFromWDL(p *wdl.RetryPolicy) actor.RetryPolicy {
	def := actor.DefaultConfig().RetryPolicy
	if p == nil {
		return def
	}
	out := def
	if p.Count > 0 {
		out.MaxAttempts = p.Count
	}
	switch p.Type {
	case "fixed":
		out.Backoff = actor.BackoffFixed
	case "linear":
		out.Backoff = actor.BackoffLinear
	case "exponential":
		out.Backoff = actor.BackoffExponential
	}
	if d, err := parseISO8601Duration(p.Interval); err == nil && d > 0 {
		out.InitialDelay = d
	}
	if d, err := parseISO8601Duration(p.MaxInterval); err == nil && d > 0 {
		out.MaxDelay = d
	}
	if p.Multiplier > 0 {
		out.Multiplier = p.Multiplier
	}
	return out
}

func errRetryNeedsAction(name string) error {
	return &wdlError{action: name, msg: "Retry action requires a wrapped action"}
}

type wdlError struct {
	action string
	msg    string
}

func (e *wdlError) Error() string { return "[" + e.action + "] " + e.msg }
