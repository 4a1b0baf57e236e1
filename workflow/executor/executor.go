// Package executor implements the Workflow Executor (spec component C11):
// the expression evaluator (expr.go), the greedy ready-set scheduler over
// an action's runAfter graph, and the control-flow action dispatcher
// (actions.go, loop.go). Grounded on the teacher's engine.go execution loop
// (graph/engine.go runConcurrent's frontier-driven, dependency-respecting
// traversal) generalized from a fixed node graph to the WDL's named
// actions and their allowed-status gated runAfter edges.
package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// Status is an action's recorded terminal disposition, per spec.md §4.6.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusSkipped   Status = "Skipped"
	StatusTimedOut  Status = "TimedOut"
)

// Instance is one running (or completed) workflow instance's state, per
// spec.md §4.6.
type Instance struct {
	WorkflowID string
	InstanceID string
	Parameters map[string]any
	Actions    map[string]any // name -> {"status": Status, "output": ...} merged map
	Variables  map[string]any
}

// ActionRecord is the per-action bookkeeping the scheduler consults to
// decide readiness; it is also what gets flattened into Instance.Actions
// for expression lookups (@actions('name').status, @actions('name').output).
type ActionRecord struct {
	Status Status `json:"status"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ActionRecord) toMap() map[string]any {
	m := map[string]any{"status": string(r.Status)}
	if r.Output != nil {
		m["output"] = r.Output
		if om, ok := r.Output.(map[string]any); ok {
			for k, v := range om {
				if _, exists := m[k]; !exists {
					m[k] = v
				}
			}
		}
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}

// ActorDispatcher routes an Actor action to the actor runtime.
type ActorDispatcher interface {
	DispatchActor(ctx context.Context, actorType, actorID, method string, args any) (any, error)
}

// ActivityHost executes an Activity action externally (the WASM sandbox is
// out of scope; only the contract is consumed here).
type ActivityHost interface {
	RunActivity(ctx context.Context, name string, input any) (any, error)
}

// AIDispatcher routes an AI action to an AIAgent actor, per spec.md §4.6.
type AIDispatcher interface {
	DispatchAI(ctx context.Context, message, systemPrompt, model string, temperature float64) (any, error)
}

// HTTPDoer performs an Http action.
type HTTPDoer interface {
	DoHTTP(ctx context.Context, method, url string, headers map[string]string, body any) (status int, respHeaders map[string]string, respBody any, err error)
}

// Tracer receives execution lifecycle events; nil is valid.
type Tracer interface {
	Emit(ctx context.Context, event string, fields map[string]any)
}

// Option configures an Executor, mirroring the teacher's functional-option
// style (graph.Option) rather than a builder.
type Option func(*Executor)

func WithActorDispatcher(d ActorDispatcher) Option { return func(e *Executor) { e.Actors = d } }
func WithActivityHost(h ActivityHost) Option       { return func(e *Executor) { e.Activities = h } }
func WithAIDispatcher(d AIDispatcher) Option       { return func(e *Executor) { e.AI = d } }
func WithHTTPDoer(h HTTPDoer) Option               { return func(e *Executor) { e.HTTP = h } }
func WithSecrets(s SecretsClient) Option           { return func(e *Executor) { e.Secrets = s } }
func WithTracer(t Tracer) Option                   { return func(e *Executor) { e.Tracer = t } }

// Executor runs one workflow Definition to completion, dispatching its
// actions to the configured external collaborators.
type Executor struct {
	Actors     ActorDispatcher
	Activities ActivityHost
	AI         AIDispatcher
	HTTP       HTTPDoer
	Secrets    SecretsClient
	Tracer     Tracer
}

// New constructs an Executor with the given options.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) trace(ctx context.Context, event string, fields map[string]any) {
	if e.Tracer == nil {
		return
	}
	e.Tracer.Emit(ctx, event, fields)
}

// Run executes def's top-level actions to completion and returns the final
// Instance, per spec.md §4.6's greedy ready-set scheduling.
func (e *Executor) Run(ctx context.Context, workflowID, instanceID string, def *wdl.Definition, params map[string]any) (*Instance, error) {
	inst := &Instance{
		WorkflowID: workflowID,
		InstanceID: instanceID,
		Parameters: params,
		Actions:    make(map[string]any),
		Variables:  make(map[string]any),
	}
	if err := e.runActionSet(ctx, inst, def.Actions); err != nil {
		return inst, err
	}
	return inst, nil
}

// runActionSet drives one map of named actions to completion: every action
// with no runAfter is immediately runnable; an action with runAfter
// becomes runnable once every prerequisite has recorded a status in its
// allowed list. If a full pass makes no scheduling progress while actions
// remain unresolved, the instance fails with "Cannot make progress", per
// spec.md §4.6.
func (e *Executor) runActionSet(ctx context.Context, inst *Instance, actions map[string]*wdl.Action) error {
	pending := make(map[string]*wdl.Action, len(actions))
	for name, a := range actions {
		pending[name] = a
	}

	for len(pending) > 0 {
		ready := e.readyActions(inst, pending)
		if len(ready) == 0 {
			return fmt.Errorf("Cannot make progress: %d action(s) unresolved", len(pending))
		}
		for _, name := range ready {
			rec := e.runOne(ctx, inst, name, pending[name])
			inst.Actions[name] = rec.toMap()
			delete(pending, name)
		}
	}
	return nil
}

// readyActions returns, in deterministic (sorted) order, the names in
// pending whose runAfter prerequisites have all resolved to an allowed
// status.
func (e *Executor) readyActions(inst *Instance, pending map[string]*wdl.Action) []string {
	var ready []string
	for name, a := range pending {
		if e.isReady(inst, a) {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)
	return ready
}

func (e *Executor) isReady(inst *Instance, a *wdl.Action) bool {
	if len(a.RunAfter) == 0 {
		return true
	}
	for prereq, allowed := range a.RunAfter {
		rec, ok := inst.Actions[prereq]
		if !ok {
			return false
		}
		status, _ := rec.(map[string]any)["status"].(string)
		if !statusAllowed(status, allowed) {
			return false
		}
	}
	return true
}

func statusAllowed(status string, allowed []string) bool {
	for _, s := range allowed {
		if s == status {
			return true
		}
	}
	return false
}

// runOne dispatches a single action to completion, recovering a failure
// into a Failed ActionRecord rather than aborting the whole instance: the
// scheduler, not the action, decides whether a downstream runAfter treats
// Failed as acceptable.
func (e *Executor) runOne(ctx context.Context, inst *Instance, name string, a *wdl.Action) ActionRecord {
	start := time.Now()
	e.trace(ctx, "action_started", map[string]any{"action": name, "type": string(a.Type)})

	out, err := e.dispatch(ctx, inst, name, a)

	rec := ActionRecord{Status: StatusSucceeded, Output: out}
	if err != nil {
		if to, ok := err.(timeoutError); ok {
			rec = ActionRecord{Status: StatusTimedOut, Error: to.Error()}
		} else {
			rec = ActionRecord{Status: StatusFailed, Error: err.Error()}
		}
	}
	e.trace(ctx, "action_completed", map[string]any{
		"action": name, "type": string(a.Type), "status": string(rec.Status),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return rec
}

type timeoutError struct{ msg string }

func (t timeoutError) Error() string { return t.msg }

func (e *Executor) evaluator(inst *Instance) *Evaluator {
	return &Evaluator{
		Parameters: inst.Parameters,
		Actions:    inst.Actions,
		Variables:  inst.Variables,
		Secrets:    e.Secrets,
	}
}
