package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// runLoop implements Until, While, and DoUntil, per spec.md §4.6's unified
// loop semantics. Until and DoUntil share the same post-test shape (the
// Design Notes flag the source's "extra iteration before the check" as a
// bug and fix it to "condition evaluated after body" for both); While is
// pre-test. loopIndex (0-based) and loopCount (1-based) are bound as
// per-iteration instance variables, restored to their prior values (if
// any) once the loop exits, so nested loops are independently addressable
// per the Design Notes.
func (e *Executor) runLoop(ctx context.Context, inst *Instance, name string, a *wdl.Action) (any, error) {
	if a.Limit == nil || a.Limit.Count <= 0 {
		return nil, fmt.Errorf("workflow: loop %q requires limit.count", name)
	}
	timeoutDur, err := parseISO8601Duration(a.Limit.Timeout)
	if err != nil {
		return nil, err
	}
	var delayDur time.Duration
	if a.Delay != nil {
		delayDur = time.Duration(a.Delay.Interval) * unitDuration(a.Delay.Unit)
	}

	prevIndex, hadIndex := inst.Variables["loopIndex"]
	prevCount, hadCount := inst.Variables["loopCount"]
	defer func() {
		if hadIndex {
			inst.Variables["loopIndex"] = prevIndex
		} else {
			delete(inst.Variables, "loopIndex")
		}
		if hadCount {
			inst.Variables["loopCount"] = prevCount
		} else {
			delete(inst.Variables, "loopCount")
		}
	}()

	start := time.Now()
	deadlineExceeded := func() bool {
		return timeoutDur > 0 && time.Since(start) >= timeoutDur
	}

	var results []any
	index := 0
	conditionMet := false
	status := "max-iterations"

	for {
		if a.Type == wdl.ActionWhile {
			inst.Variables["loopIndex"] = index
			inst.Variables["loopCount"] = index + 1
			cond, err := e.evalCondition(inst, a.Condition)
			if err != nil {
				return loopResult(status, len(results), conditionMet, results), err
			}
			if cond {
				conditionMet = true
				status = "completed"
				break
			}
		}

		if deadlineExceeded() {
			status = "timeout"
			break
		}
		if index >= a.Limit.Count {
			status = "max-iterations"
			break
		}

		inst.Variables["loopIndex"] = index
		inst.Variables["loopCount"] = index + 1

		out, err := e.runBranch(ctx, inst, a.Actions)
		if err != nil {
			return loopResult("failed", len(results), conditionMet, results), err
		}
		results = append(results, out)
		index++

		if a.Type != wdl.ActionWhile {
			inst.Variables["loopIndex"] = index
			inst.Variables["loopCount"] = index
			cond, err := e.evalCondition(inst, a.Condition)
			if err != nil {
				return loopResult(status, len(results), conditionMet, results), err
			}
			if cond {
				conditionMet = true
				status = "completed"
				break
			}
		}

		if index >= a.Limit.Count {
			status = "max-iterations"
			break
		}
		if deadlineExceeded() {
			status = "timeout"
			break
		}
		if delayDur > 0 {
			select {
			case <-time.After(delayDur):
			case <-ctx.Done():
				return loopResult("timeout", len(results), conditionMet, results), ctx.Err()
			}
		}
	}

	return loopResult(status, len(results), conditionMet, results), nil
}

func loopResult(status string, iterations int, conditionMet bool, results []any) map[string]any {
	return map[string]any{
		"status":       status,
		"iterations":   iterations,
		"conditionMet": conditionMet,
		"results":      results,
	}
}

func unitDuration(unit string) time.Duration {
	switch unit {
	case "Millisecond":
		return time.Millisecond
	case "Minute":
		return time.Minute
	case "Hour":
		return time.Hour
	default: // "Second" and unset default to seconds
		return time.Second
	}
}
