package queue

import (
	"context"
	"time"
)

// Queue is the Message Queue abstraction from spec.md §4.4: priority and
// delayed delivery, explicit ack/nack, and dead-lettering. Implementations
// must make delivery at-least-once; exactly-once processing is achieved one
// layer up, by the Worker consulting the idempotency store.
type Queue interface {
	// Enqueue admits msg onto queueName, honoring opts.Priority and
	// opts.Delay.
	Enqueue(ctx context.Context, queueName string, msg Message, opts Options) error

	// Dequeue blocks up to timeout for a ready message, returning (msg,
	// true, nil) on delivery or (zero, false, nil) on timeout.
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (Message, bool, error)

	// Ack marks msg as successfully processed, removing it from the
	// in-flight set.
	Ack(ctx context.Context, queueName string, msg Message) error

	// Nack returns msg to the queue for redelivery after delay.
	Nack(ctx context.Context, queueName string, msg Message, delay time.Duration) error

	// DeadLetter moves msg to queueName's dead-letter queue with reason
	// recorded, per spec.md §3 Error Taxonomy's permanent-failure class.
	DeadLetter(ctx context.Context, queueName string, msg Message, reason string) error

	// Stats returns an admin-observable per-queue summary.
	Stats(ctx context.Context, queueName string) (Stats, error)
}
