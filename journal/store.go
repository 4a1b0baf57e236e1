// Package journal implements the Journal Store (spec component C1): a
// durable, append-only log per actor plus periodic snapshots, grounded on
// the teacher's graph/store.Store[S] interface shape and its memory/SQL
// backends.
package journal

import (
	"context"
	"errors"

	"github.com/certo-ventures/loom/actor"
)

// ErrNotFound is returned by GetLatestSnapshot when no snapshot exists for
// an actor. It is not an error condition for callers: per spec.md §4.1, a
// corrupt or absent snapshot simply forces a full replay.
var ErrNotFound = errors.New("journal: not found")

// Store is the durable journal persistence contract. Implementations must
// support streaming, ordered, at-most-once-per-call appends and positional
// trim.
type Store interface {
	// AppendEntry appends entry to actorId's journal. Append failures are
	// the caller's responsibility to treat as non-fatal (logged, retried on
	// the actor's next invocation) per spec.md §4.2.
	AppendEntry(ctx context.Context, actorID string, entry actor.Entry) error

	// ReadEntries returns all entries currently retained for actorID, in
	// append order. Parsing failures for a stored entry are fatal and
	// returned as an error (unlike snapshot corruption, which is absorbed).
	ReadEntries(ctx context.Context, actorID string) ([]actor.Entry, error)

	// SaveSnapshot persists a new snapshot for actorID, replacing any prior
	// snapshot. Failure must not crash the actor; it is the caller's
	// responsibility to treat it as advisory.
	SaveSnapshot(ctx context.Context, actorID string, snap actor.Snapshot) error

	// GetLatestSnapshot returns the most recent snapshot for actorID, or
	// ErrNotFound if none exists or the stored snapshot could not be
	// parsed (corrupt snapshots are treated as absent, never surfaced as a
	// distinct error kind).
	GetLatestSnapshot(ctx context.Context, actorID string) (actor.Snapshot, error)

	// TrimEntries discards all entries with index < beforeCursor. A
	// beforeCursor >= the current entry count trims all entries.
	TrimEntries(ctx context.Context, actorID string, beforeCursor int) error

	// DeleteJournal removes all entries and the snapshot for actorID.
	DeleteJournal(ctx context.Context, actorID string) error
}
