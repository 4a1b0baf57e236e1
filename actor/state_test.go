package actor

import "testing"

func TestState_SetGetOrder(t *testing.T) {
	s := NewState()
	if err := s.Set("b", 2); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if err := s.Set("a", 1); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if got := s.Keys(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("expected insertion order [b a], got %v", got)
	}

	var v int
	ok, err := s.Get("a", &v)
	if err != nil || !ok || v != 1 {
		t.Fatalf("get a: ok=%v err=%v v=%v", ok, err, v)
	}
}

func TestState_SetExistingKeyKeepsPosition(t *testing.T) {
	s := NewState()
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)
	_ = s.Set("a", 99)

	if got := s.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
	var v int
	_, _ = s.Get("a", &v)
	if v != 99 {
		t.Fatalf("expected a=99, got %d", v)
	}
}

func TestState_Delete(t *testing.T) {
	s := NewState()
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)

	if !s.Delete("a") {
		t.Fatalf("expected delete to report found")
	}
	if s.Delete("a") {
		t.Fatalf("expected second delete to report not found")
	}
	if s.Has("a") {
		t.Fatalf("a should be gone")
	}
	if got := s.Keys(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := NewState()
	_ = s.Set("a", 1)
	clone := s.Clone()
	_ = clone.Set("a", 2)
	_ = clone.Set("c", 3)

	var v int
	_, _ = s.Get("a", &v)
	if v != 1 {
		t.Fatalf("mutating clone affected original: a=%d", v)
	}
	if s.Has("c") {
		t.Fatalf("mutating clone affected original: c present")
	}
}

func TestState_MarshalUnmarshalRoundTrip(t *testing.T) {
	s := NewState()
	_ = s.Set("z", "first")
	_ = s.Set("a", "second")

	raw, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := NewState()
	if err := got.UnmarshalJSON(raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if keys := got.Keys(); len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Fatalf("expected order [z a] preserved through round-trip, got %v", keys)
	}
}
