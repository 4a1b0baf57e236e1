package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the idempotency cache with a Redis SET-NX-EX, grounded on
// evalgo-org-eve/db/repository/redis.go's SetCache/GetCache pair: SETNX
// gives PutIfAbsent its exclusivity for free instead of needing a
// check-then-set race.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(k string) string { return fmt.Sprintf("%s:idempotency:%s", r.prefix, k) }

func (r *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("idempotency: parse record: %w", err)
	}
	return rec, true, nil
}

func (r *RedisStore) PutIfAbsent(ctx context.Context, rec Record) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("idempotency: marshal record: %w", err)
	}
	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Millisecond
		}
	}
	ok, err := r.client.SetNX(ctx, r.key(rec.Key), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: setnx: %w", err)
	}
	return ok, nil
}
