// Package compiler implements the Workflow Compiler (spec component C10):
// structural validation of a wdl.Definition, the runAfter dependency graph,
// and cycle detection. Grounded on the pack's orchestration repos'
// "validate structure, detect cycles" shape (a DFS with an on-stack set,
// the same technique the teacher would need if its Connect/StartAt graph
// admitted cycles — graph/engine.go's Add/Connect reject duplicate wiring
// eagerly rather than deferring to a cycle pass, which is the nearest
// in-teacher analogue).
package compiler

import (
	"fmt"
	"sort"

	"github.com/certo-ventures/loom/workflow/wdl"
)

// Error is one structural problem found in a Definition.
type Error struct {
	Action  string `json:"action,omitempty"`
	Message string `json:"message"`
}

// Result is the compiler's verdict, per spec.md §4.5.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors"`
}

// Compile validates def's structure and returns a Result. It never panics
// on malformed input; every problem is reported as an Error rather than a
// Go error, since compile-time validation failures are data, not faults.
func Compile(def *wdl.Definition) Result {
	var errs []Error

	if def == nil {
		return Result{Valid: false, Errors: []Error{{Message: "Workflow definition is nil"}}}
	}

	if len(def.Triggers) == 0 {
		errs = append(errs, Error{Message: "Workflow must have at least one trigger"})
	}
	if len(def.Actions) == 0 {
		errs = append(errs, Error{Message: "Workflow must have at least one action"})
	}

	errs = append(errs, validateActionTypes(def.Actions)...)
	errs = append(errs, validateRunAfterRefs(def.Actions)...)
	if cycleErr, ok := detectCycle(def.Actions); ok {
		errs = append(errs, cycleErr)
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// validateActionTypes rejects unknown action types and recurses into
// nested action maps (If/Foreach/Parallel/Scope/loop bodies/catch), since
// a bad type nested three scopes deep is still a compile error.
func validateActionTypes(actions map[string]*wdl.Action) []Error {
	var errs []Error
	names := sortedKeys(actions)
	for _, name := range names {
		a := actions[name]
		if a == nil {
			continue
		}
		if !wdl.KnownActionTypes[a.Type] {
			errs = append(errs, Error{Action: name, Message: fmt.Sprintf("[%s] Unknown action type: %s", name, a.Type)})
		}
		errs = append(errs, validateActionTypes(a.Actions)...)
		errs = append(errs, validateActionTypes(a.Else)...)
		errs = append(errs, validateActionTypes(a.Catch)...)
		if a.Action != nil {
			errs = append(errs, validateActionTypes(map[string]*wdl.Action{name + ".action": a.Action})...)
		}
	}
	return errs
}

// validateRunAfterRefs checks that every runAfter prerequisite name refers
// to an action that actually exists at the same nesting level.
func validateRunAfterRefs(actions map[string]*wdl.Action) []Error {
	var errs []Error
	for name, a := range actions {
		if a == nil {
			continue
		}
		for prereq := range a.RunAfter {
			if _, ok := actions[prereq]; !ok {
				errs = append(errs, Error{Action: name, Message: fmt.Sprintf("[%s] Unknown dependency: %s", name, prereq)})
			}
		}
	}
	return errs
}

// detectCycle runs DFS with an on-stack set over the top-level runAfter
// graph, per spec.md §4.5. Only one cycle error is ever reported: once a
// cycle exists the graph is invalid regardless of how many edges
// participate in it.
func detectCycle(actions map[string]*wdl.Action) (Error, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(actions))

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		a := actions[name]
		if a != nil {
			for prereq := range a.RunAfter {
				if _, ok := actions[prereq]; !ok {
					continue // unknown ref is reported separately
				}
				switch color[prereq] {
				case gray:
					return true
				case white:
					if visit(prereq) {
						return true
					}
				}
			}
		}
		color[name] = black
		return false
	}

	for _, name := range sortedKeys(actions) {
		if color[name] == white {
			if visit(name) {
				return Error{Message: "Circular dependency detected in runAfter"}, true
			}
		}
	}
	return Error{}, false
}

func sortedKeys(m map[string]*wdl.Action) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
