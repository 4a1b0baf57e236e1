package actor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// State is an ordered mapping from string keys to JSON-compatible values.
// Actor state is mutated only by the owning actor and is persisted as the
// latest snapshot plus trailing journal entries. Key order is preserved
// across Set/Delete/Clone/marshal round-trips so that hashing and diffing
// the state is deterministic regardless of Go's unordered map iteration.
type State struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewState returns an empty, ready-to-use State.
func NewState() *State {
	return &State{values: make(map[string]json.RawMessage)}
}

// Keys returns the state's keys in insertion order. The returned slice must
// not be mutated by the caller.
func (s *State) Keys() []string {
	return s.keys
}

// Has reports whether key is present.
func (s *State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get unmarshals the value stored at key into out. Returns false if key is
// absent.
func (s *State) Get(key string, out any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	return true, json.Unmarshal(raw, out)
}

// Raw returns the raw JSON bytes stored at key, or nil if absent.
func (s *State) Raw(key string) (json.RawMessage, bool) {
	raw, ok := s.values[key]
	return raw, ok
}

// Set stores value at key, marshaling it to JSON. New keys are appended to
// the end of Keys(); existing keys keep their position.
func (s *State) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("actor: marshal state key %q: %w", key, err)
	}
	return s.SetRaw(key, raw)
}

// SetRaw stores a pre-marshaled JSON value at key.
func (s *State) SetRaw(key string, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("actor: invalid JSON for state key %q", key)
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	s.values[key] = cp
	return nil
}

// Delete removes key, returning true if it was present.
func (s *State) Delete(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns a deep, independent copy. This is the only place state is
// duplicated wholesale; everywhere else operates on explicit keys so that
// journal/snapshot boundaries are the sole clone points, per the runtime's
// determinism contract.
func (s *State) Clone() *State {
	cp := &State{
		keys:   append([]string(nil), s.keys...),
		values: make(map[string]json.RawMessage, len(s.values)),
	}
	for k, v := range s.values {
		raw := make(json.RawMessage, len(v))
		copy(raw, v)
		cp.values[k] = raw
	}
	return cp
}

// MarshalJSON renders the state as a JSON object with keys in insertion
// order (Go's encoding/json sorts map keys alphabetically, which would
// silently break determinism of hashes computed over serialized state).
func (s *State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(s.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reconstructs the state, preserving the key order in which
// they appear in the input document.
func (s *State) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("actor: state must be a JSON object")
	}
	s.keys = nil
	s.values = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("actor: state key is not a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if _, exists := s.values[key]; !exists {
			s.keys = append(s.keys, key)
		}
		s.values[key] = raw
	}
	return nil
}
