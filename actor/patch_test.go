package actor

import "testing"

func TestDiffAndApply_RoundTrip(t *testing.T) {
	before := NewState()
	_ = before.Set("name", "alice")
	_ = before.Set("count", 1)

	after := before.Clone()
	_ = after.Set("count", 2)
	_ = after.Set("extra", true)
	after.Delete("name")

	forward, inverse := diff(before, after)
	if len(forward) != 3 {
		t.Fatalf("expected 3 forward patches, got %d", len(forward))
	}

	applied := before.Clone()
	if err := Apply(applied, forward); err != nil {
		t.Fatalf("apply forward: %v", err)
	}
	if applied.Has("name") {
		t.Fatalf("expected name deleted after forward patch")
	}
	var count int
	if _, err := applied.Get("count", &count); err != nil || count != 2 {
		t.Fatalf("expected count=2, got %d err=%v", count, err)
	}

	restored := after.Clone()
	if err := Apply(restored, inverse); err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	var restoredCount int
	if _, err := restored.Get("count", &restoredCount); err != nil || restoredCount != 1 {
		t.Fatalf("expected count restored to 1, got %d err=%v", restoredCount, err)
	}
	if restored.Has("extra") {
		t.Fatalf("expected extra removed by inverse patch")
	}
	var name string
	if ok, _ := restored.Get("name", &name); !ok || name != "alice" {
		t.Fatalf("expected name restored to alice, got %q ok=%v", name, ok)
	}
}

func TestDiff_NoChanges(t *testing.T) {
	before := NewState()
	_ = before.Set("a", 1)
	after := before.Clone()

	forward, inverse := diff(before, after)
	if len(forward) != 0 || len(inverse) != 0 {
		t.Fatalf("expected no patches for identical states, got forward=%v inverse=%v", forward, inverse)
	}
}
