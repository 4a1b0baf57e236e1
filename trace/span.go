// Package trace implements the Trace Writer/Reader (spec component C6): a
// distributed trace substrate that records journal entries, messages, and
// idempotency lookups by reference rather than by value. Emission is
// grounded on the teacher's graph/emit package (Event/Emitter shape,
// BufferedEmitter, OTelEmitter); the reader side is grounded on
// evalgo-org-eve's db/couchdb_query.go partitioned Mango queries.
package trace

import "time"

// EventType names what happened at a span, e.g. "activity_scheduled",
// "message_deduplicated", "actor_suspended".
type EventType string

// Status is the terminal disposition of a span, when known.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ActorStateRef points at the state of an actor at the time of the event,
// without copying it.
type ActorStateRef struct {
	ActorID string `json:"actor_id"`
	Version int    `json:"version,omitempty"`
}

// JournalEntryRef points at one journal entry rather than embedding it.
type JournalEntryRef struct {
	ActorID    string `json:"actor_id"`
	EntryIndex int    `json:"entry_index"`
	EntryType  string `json:"entry_type"`
}

// MessageRef points at a queue message.
type MessageRef struct {
	MessageID     string `json:"message_id"`
	QueueName     string `json:"queue_name"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// IdempotencyRef points at an idempotency store record.
type IdempotencyRef struct {
	Key string `json:"key"`
}

// Refs is the reference-bearing payload a span carries, per spec.md §4.9:
// pointers into actor state, the journal, the message queue, and the
// idempotency store, instead of copies of their contents.
type Refs struct {
	ActorState *ActorStateRef   `json:"actor_state,omitempty"`
	Journal    *JournalEntryRef `json:"journal_entry,omitempty"`
	Message    *MessageRef      `json:"message,omitempty"`
	Idempotency *IdempotencyRef `json:"idempotency,omitempty"`
}

// Span is one observability event.
type Span struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	EventType    EventType         `json:"event_type"`
	Timestamp    time.Time         `json:"timestamp"`
	Status       Status            `json:"status,omitempty"`
	Refs         *Refs             `json:"refs,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Emitter records spans. Emission must never panic or block user code on
// failure; implementations swallow errors with a best-effort warning
// instead of propagating them, per spec.md §4.9.
type Emitter interface {
	Emit(span Span)
}
