// Package lock implements the Lock Manager (spec component C5): leased
// distributed locks (acquire/extend/release), grounded on
// evalgo-org-eve/db/repository/redis.go's AcquireLock/ReleaseLock/IsLocked
// (SETNX/DEL/EXISTS), extended with a per-acquisition token so Extend and
// Release are safe against a lock that expired and was re-acquired by
// someone else (the in-pack reference doesn't guard against that).
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Extend when the lock's token no longer matches
// what is stored — either it expired and was re-acquired by someone else,
// or it was already released.
var ErrNotHeld = errors.New("lock: not held")

// Lock is a leased hold on a key, identified by an opaque token that proves
// ownership across Extend/Release calls.
type Lock struct {
	Key   string
	Token string
}

// Manager is the distributed lock contract.
type Manager interface {
	// Acquire attempts to take key with the given TTL. It returns (nil,
	// false, nil) if the key is already held by someone else.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error)

	// Extend resets the TTL on an already-held lock. Extending an expired
	// (and possibly re-acquired) lock returns ErrNotHeld rather than
	// silently extending someone else's lock.
	Extend(ctx context.Context, l *Lock, ttl time.Duration) error

	// Release gives up the lock. Releasing an expired lock is a
	// documented no-op, never an error: the runtime must be able to call
	// Release unconditionally on every dispatch exit path.
	Release(ctx context.Context, l *Lock) error
}
