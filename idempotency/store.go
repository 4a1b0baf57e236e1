// Package idempotency implements the Idempotency Store (spec component
// C2): a keyed record cache with TTL, grounded on
// evalgo-org-eve/db/repository/redis.go's SetCache/GetCache pattern.
package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the cached outcome of one execution attributable to a key,
// per spec.md §3.
type Record struct {
	Key        string          `json:"key"`
	ActorID    string          `json:"actor_id"`
	Result     json.RawMessage `json:"result"`
	ExecutedAt time.Time       `json:"executed_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	MessageID  string          `json:"message_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Store is the idempotency persistence contract. Put must be exclusive:
// two concurrent Puts for the same key should not both report success,
// since that is exactly the "more than one execution attributable to k"
// condition the exactly-once invariant forbids.
type Store interface {
	// Get returns the cached record for key, and whether it was found
	// (and not expired).
	Get(ctx context.Context, key string) (Record, bool, error)

	// PutIfAbsent stores rec under key, honoring rec.ExpiresAt as a TTL.
	// It returns false (without error) if key already holds a live
	// record — the caller must then treat the existing record as the
	// answer, not overwrite it.
	PutIfAbsent(ctx context.Context, rec Record) (bool, error)
}
