package actor

import (
	"bytes"
	"encoding/json"
)

// PatchOp identifies the kind of change a Patch describes.
type PatchOp string

const (
	PatchSet    PatchOp = "set"
	PatchDelete PatchOp = "delete"
)

// Patch describes one key-level change to a State. A state_patches journal
// entry carries a forward patch set (old -> new) and an inverse patch set
// (new -> old); applying the inverse set to the post-state reproduces the
// pre-state exactly, which is what compensateLastStateChange relies on.
type Patch struct {
	Op    PatchOp         `json:"op"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Apply applies patches to s in order, mutating it in place.
func Apply(s *State, patches []Patch) error {
	for _, p := range patches {
		switch p.Op {
		case PatchSet:
			if err := s.SetRaw(p.Key, p.Value); err != nil {
				return err
			}
		case PatchDelete:
			s.Delete(p.Key)
		}
	}
	return nil
}

// diff computes the forward patch set that transforms "before" into
// "after", and the inverse patch set that transforms "after" back into
// "before". Both sets are ordered deterministically by "after"'s key order
// for new/changed keys, followed by deletions in "before"'s key order.
func diff(before, after *State) (forward, inverse []Patch) {
	beforeSet := make(map[string]struct{}, len(before.keys))
	for _, k := range before.keys {
		beforeSet[k] = struct{}{}
	}

	for _, k := range after.keys {
		newVal := after.values[k]
		oldVal, existed := before.values[k]
		if existed && bytes.Equal(oldVal, newVal) {
			continue
		}
		forward = append(forward, Patch{Op: PatchSet, Key: k, Value: cloneRaw(newVal)})
		if existed {
			inverse = append(inverse, Patch{Op: PatchSet, Key: k, Value: cloneRaw(oldVal)})
		} else {
			inverse = append(inverse, Patch{Op: PatchDelete, Key: k})
		}
	}

	for _, k := range before.keys {
		if _, ok := after.values[k]; ok {
			continue
		}
		forward = append(forward, Patch{Op: PatchDelete, Key: k})
		inverse = append(inverse, Patch{Op: PatchSet, Key: k, Value: cloneRaw(before.values[k])})
	}

	return forward, inverse
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp
}
