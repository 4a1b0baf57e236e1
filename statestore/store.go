// Package statestore implements the State Store (spec component C4): a
// partitioned KV for actor state blobs and snapshots, grounded on
// evalgo-org-eve/db/repository/redis.go's cache operations generalized to
// hash-per-partition (actorId as partition key) per spec.md §6 ("KV service
// ... hash hgetall/hincrby/hget/hset").
package statestore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a field is absent from a partition.
var ErrNotFound = errors.New("statestore: not found")

// Store is a partitioned key-value store: every operation is scoped to a
// partition (typically an actorId), with field-level get/set/delete plus a
// whole-partition read for rehydration.
type Store interface {
	Get(ctx context.Context, partition, field string) ([]byte, error)
	Set(ctx context.Context, partition, field string, value []byte) error
	Delete(ctx context.Context, partition, field string) error
	GetAll(ctx context.Context, partition string) (map[string][]byte, error)
	DeletePartition(ctx context.Context, partition string) error
}
