package executor

import (
	"context"
	"fmt"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// dispatch evaluates a's inputs/condition against inst's current bindings
// and executes it according to its Type, per spec.md §4.6.
func (e *Executor) dispatch(ctx context.Context, inst *Instance, name string, a *wdl.Action) (any, error) {
	switch a.Type {
	case wdl.ActionCompose:
		return e.runCompose(inst, a)
	case wdl.ActionActor:
		return e.runActor(ctx, inst, a)
	case wdl.ActionActivity:
		return e.runActivity(ctx, inst, a)
	case wdl.ActionAI:
		return e.runAI(ctx, inst, name, a)
	case wdl.ActionHttp:
		return e.runHttp(ctx, inst, a)
	case wdl.ActionIf:
		return e.runIf(ctx, inst, a)
	case wdl.ActionForeach:
		return e.runForeach(ctx, inst, a)
	case wdl.ActionParallel:
		return e.runParallel(ctx, inst, a)
	case wdl.ActionScope:
		return e.runScope(ctx, inst, a)
	case wdl.ActionUntil, wdl.ActionWhile, wdl.ActionDoUntil:
		return e.runLoop(ctx, inst, name, a)
	case wdl.ActionRetry:
		return e.runRetry(ctx, inst, name, a)
	default:
		return nil, fmt.Errorf("workflow: unsupported action type %q", a.Type)
	}
}

// runCompose evaluates and returns Inputs verbatim, per spec.md §4.6.
func (e *Executor) runCompose(inst *Instance, a *wdl.Action) (any, error) {
	return e.evaluator(inst).EvaluateValue(map[string]any(a.Inputs))
}

// runActor passes the evaluated Inputs' actorType, actorId, method and args
// to the ActorDispatcher as given and returns its response. An absent
// actorType or actorId is passed on as ""; neither is derived from the
// other and no instance is selected here.
func (e *Executor) runActor(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	if e.Actors == nil {
		return nil, fmt.Errorf("workflow: no actor dispatcher configured")
	}
	inputs, err := e.evaluator(inst).EvaluateValue(map[string]any(a.Inputs))
	if err != nil {
		return nil, err
	}
	m := inputs.(map[string]any)
	actorType, _ := m["actorType"].(string)
	actorID, _ := m["actorId"].(string)
	method, _ := m["method"].(string)
	return e.Actors.DispatchActor(ctx, actorType, actorID, method, m["args"])
}

// runActivity registers and awaits an externally executed activity, per
// spec.md §4.6.
func (e *Executor) runActivity(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	if e.Activities == nil {
		return nil, fmt.Errorf("workflow: no activity host configured")
	}
	inputs, err := e.evaluator(inst).EvaluateValue(map[string]any(a.Inputs))
	if err != nil {
		return nil, err
	}
	m := inputs.(map[string]any)
	name, _ := m["name"].(string)
	return e.Activities.RunActivity(ctx, name, m["input"])
}

// runAI routes to an AIAgent actor with the documented {message,
// systemPrompt, temperature, model} payload, per spec.md §4.6.
func (e *Executor) runAI(ctx context.Context, inst *Instance, name string, a *wdl.Action) (any, error) {
	if e.AI == nil {
		return nil, fmt.Errorf("workflow: no AI dispatcher configured")
	}
	inputs, err := e.evaluator(inst).EvaluateValue(map[string]any(a.Inputs))
	if err != nil {
		return nil, err
	}
	m := inputs.(map[string]any)
	message, _ := m["message"].(string)
	systemPrompt, _ := m["systemPrompt"].(string)
	model, _ := m["model"].(string)
	temperature, _ := m["temperature"].(float64)
	ctx = WithInstanceID(ctx, inst.InstanceID)
	ctx = WithActionName(ctx, name)
	return e.AI.DispatchAI(ctx, message, systemPrompt, model, temperature)
}

// instanceContextKey namespaces values dispatch attaches to ctx so an
// AIDispatcher implementation (ai.Agent) can attribute cost to the
// workflow instance and action name that issued the call.
type instanceContextKey string

const (
	instanceIDContextKey instanceContextKey = "loom_instance_id"
	actionNameContextKey instanceContextKey = "loom_action_name"
)

// WithInstanceID attaches a running workflow instance's ID to ctx.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return context.WithValue(ctx, instanceIDContextKey, instanceID)
}

// WithActionName attaches the currently dispatching action's name to ctx.
func WithActionName(ctx context.Context, actionName string) context.Context {
	return context.WithValue(ctx, actionNameContextKey, actionName)
}

// InstanceIDFromContext returns the instance ID WithInstanceID attached to
// ctx, or "" if none was attached.
func InstanceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(instanceIDContextKey).(string)
	return v
}

// ActionNameFromContext returns the action name WithActionName attached to
// ctx, or "" if none was attached.
func ActionNameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(actionNameContextKey).(string)
	return v
}

// runHttp performs an HTTP call with evaluated url/method/headers/body and
// returns {status, headers, body}, per spec.md §4.6.
func (e *Executor) runHttp(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	if e.HTTP == nil {
		return nil, fmt.Errorf("workflow: no HTTP client configured")
	}
	inputs, err := e.evaluator(inst).EvaluateValue(map[string]any(a.Inputs))
	if err != nil {
		return nil, err
	}
	m := inputs.(map[string]any)
	method, _ := m["method"].(string)
	url, _ := m["url"].(string)
	var headers map[string]string
	if h, ok := m["headers"].(map[string]any); ok {
		headers = make(map[string]string, len(h))
		for k, v := range h {
			headers[k] = fmt.Sprintf("%v", v)
		}
	}
	status, respHeaders, body, err := e.HTTP.DoHTTP(ctx, method, url, headers, m["body"])
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": status, "headers": respHeaders, "body": body}, nil
}

// runIf evaluates condition and runs Actions or Else, returning
// {conditionResult, results}, per spec.md §4.6.
func (e *Executor) runIf(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	cond, err := e.evalCondition(inst, a.Condition)
	if err != nil {
		return nil, err
	}
	branch := a.Else
	if cond {
		branch = a.Actions
	}
	results, err := e.runBranch(ctx, inst, branch)
	if err != nil {
		return nil, err
	}
	return map[string]any{"conditionResult": cond, "results": results}, nil
}

// runForeach evaluates Foreach to a sequence, and for each item binds
// variables.item and runs the nested actions, returning the per-item
// results in order, per spec.md §4.6.
func (e *Executor) runForeach(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	seqAny, err := e.evaluator(inst).EvaluateString(a.Foreach)
	if err != nil {
		return nil, err
	}
	seq, ok := seqAny.([]any)
	if !ok {
		return nil, fmt.Errorf("workflow: foreach expression did not evaluate to a sequence")
	}
	var results []any
	prevItem, hadItem := inst.Variables["item"]
	for _, item := range seq {
		inst.Variables["item"] = item
		r, err := e.runBranch(ctx, inst, a.Actions)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if hadItem {
		inst.Variables["item"] = prevItem
	} else {
		delete(inst.Variables, "item")
	}
	return results, nil
}

// runParallel dispatches each child action map concurrently and awaits
// all, returning {name -> result}, per spec.md §4.6. Variables are shared
// across branches (no copy-on-branch), matching the single shared
// Instance.Variables map the rest of the executor uses.
func (e *Executor) runParallel(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	type branchResult struct {
		name string
		rec  ActionRecord
	}
	ch := make(chan branchResult, len(a.Actions))
	for name, child := range a.Actions {
		name, child := name, child
		go func() {
			ch <- branchResult{name: name, rec: e.runOne(ctx, inst, name, child)}
		}()
	}
	out := make(map[string]any, len(a.Actions))
	for range a.Actions {
		r := <-ch
		out[r.name] = r.rec.toMap()
		inst.Actions[r.name] = r.rec.toMap()
	}
	return out, nil
}

// runScope executes nested actions as a unit; on error, if Catch is
// present, it runs the catch block instead of propagating, per spec.md
// §4.6 ("unit of error handling").
func (e *Executor) runScope(ctx context.Context, inst *Instance, a *wdl.Action) (any, error) {
	results, err := e.runBranch(ctx, inst, a.Actions)
	if err == nil {
		return map[string]any{"results": results}, nil
	}
	if a.Catch == nil {
		return nil, err
	}
	catchResults, catchErr := e.runBranch(ctx, inst, a.Catch)
	if catchErr != nil {
		return nil, catchErr
	}
	return map[string]any{"results": results, "error": err.Error(), "catchResults": catchResults}, nil
}

// runBranch runs a nested action map to completion and returns the
// per-action status/output snapshot, without touching the scheduler's
// top-level pending set.
func (e *Executor) runBranch(ctx context.Context, inst *Instance, actions map[string]*wdl.Action) (map[string]any, error) {
	if err := e.runActionSet(ctx, inst, actions); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(actions))
	for name := range actions {
		out[name] = inst.Actions[name]
	}
	return out, nil
}

func (e *Executor) evalCondition(inst *Instance, cond string) (bool, error) {
	val, err := e.evaluator(inst).EvaluateString(cond)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("workflow: condition %q did not evaluate to a boolean", cond)
	}
	return b, nil
}
