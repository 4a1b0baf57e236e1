package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemQueue_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(10)

	_ = q.Enqueue(ctx, "work", Message{MessageID: "low"}, Options{Priority: 5})
	_ = q.Enqueue(ctx, "work", Message{MessageID: "high"}, Options{Priority: 1})
	_ = q.Enqueue(ctx, "work", Message{MessageID: "mid"}, Options{Priority: 3})

	var order []string
	for i := 0; i < 3; i++ {
		msg, ok, err := q.Dequeue(ctx, "work", 100*time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("dequeue %d: ok=%v err=%v", i, ok, err)
		}
		order = append(order, msg.MessageID)
	}
	want := []string{"high", "mid", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestMemQueue_DelayWithholdsUntilReady(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(10)

	if err := q.Enqueue(ctx, "delayed", Message{MessageID: "m1"}, Options{Delay: 50 * time.Millisecond}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	_, ok, err := q.Dequeue(ctx, "delayed", 10*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("expected no message before delay elapses, ok=%v err=%v", ok, err)
	}

	msg, ok, err := q.Dequeue(ctx, "delayed", 100*time.Millisecond)
	if err != nil || !ok || msg.MessageID != "m1" {
		t.Fatalf("expected m1 after delay, ok=%v err=%v msg=%+v", ok, err, msg)
	}
}

func TestMemQueue_NackRedeliversAndDeadLetterRemovesFromActive(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue(10)

	_ = q.Enqueue(ctx, "retry", Message{MessageID: "m1"}, Options{})
	msg, ok, _ := q.Dequeue(ctx, "retry", 100*time.Millisecond)
	if !ok {
		t.Fatal("expected a message")
	}

	if err := q.Nack(ctx, "retry", msg, 0); err != nil {
		t.Fatalf("nack: %v", err)
	}
	redelivered, ok, err := q.Dequeue(ctx, "retry", 100*time.Millisecond)
	if err != nil || !ok || redelivered.MessageID != "m1" {
		t.Fatalf("expected redelivery, ok=%v err=%v", ok, err)
	}

	if err := q.DeadLetter(ctx, "retry", redelivered, "boom"); err != nil {
		t.Fatalf("dead letter: %v", err)
	}
	stats, err := q.Stats(ctx, "retry")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Totals[StatusFailed] != 1 {
		t.Fatalf("expected 1 failed job, got totals=%v", stats.Totals)
	}
}
