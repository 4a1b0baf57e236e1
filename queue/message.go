// Package queue implements the Message Queue and Queue Worker (spec
// components C3, C9): priority/delayed delivery, ack/nack/dead-letter, and
// the dispatch loop that activates actors exactly once per idempotency key.
// The bounded frontier is grounded on the teacher's graph/scheduler.go
// Frontier[S]; the durable backing is grounded on
// evalgo-org-eve/queue/redis/queue.go.
package queue

import (
	"encoding/json"
	"time"
)

// Status is a job's lifecycle state, per spec.md §6.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDelayed   Status = "delayed"
)

// AttemptStatus is the outcome of one dispatch attempt.
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
)

// Attempt is one entry in a job's per-attempt log.
type Attempt struct {
	AttemptNumber int           `json:"attempt_number"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        AttemptStatus `json:"status"`
	Duration      time.Duration `json:"duration,omitempty"`
	Error         string        `json:"error,omitempty"`
	WorkerID      string        `json:"worker_id,omitempty"`
}

// Metadata is the per-message delivery metadata from spec.md §3.
type Metadata struct {
	Timestamp       time.Time `json:"timestamp"`
	Priority        int       `json:"priority"`
	IdempotencyKey  string    `json:"idempotency_key,omitempty"`
	DeliveryAttempt int       `json:"delivery_attempt"`
}

// MessageKind names what a message asks the runtime to do with an actor.
type MessageKind string

const (
	MessageInvoke          MessageKind = "invoke"           // deliver Payload as a fresh invocation
	MessageActivityResult  MessageKind = "activity_result"  // resume with an activity outcome
	MessageEvent           MessageKind = "event"             // resume with an external event
)

// Message is one unit of work on a queue, per spec.md §3.
type Message struct {
	MessageID     string          `json:"message_id"`
	ActorID       string          `json:"actor_id"`
	ActorType     string          `json:"actor_type"`
	MessageType   MessageKind     `json:"message_type"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      Metadata        `json:"metadata"`
}

// Options configures an Enqueue call.
type Options struct {
	Priority int           // lower value = higher priority, as in the teacher's min-heap OrderKey
	Delay    time.Duration // delivery is not attempted before Delay has elapsed
}

// Job is the admin-observable view of a message plus its queue lifecycle,
// per spec.md §6.
type Job struct {
	JobID       string    `json:"job_id"`
	QueueName   string    `json:"queue_name"`
	Message     Message   `json:"message"`
	Status      Status    `json:"status"`
	Attempts    []Attempt `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats is the per-queue admin summary from spec.md §6.
type Stats struct {
	Totals      map[Status]int `json:"totals"`
	LastUpdated time.Time      `json:"last_updated"`
}
