package statestore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the state store with Redis hashes, one hash key per
// partition, grounded on evalgo-org-eve/db/repository/redis.go's cache
// operations.
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

func (r *RedisStore) hashKey(partition string) string {
	return fmt.Sprintf("%s:state:%s", r.prefix, partition)
}

func (r *RedisStore) Get(ctx context.Context, partition, field string) ([]byte, error) {
	v, err := r.client.HGet(ctx, r.hashKey(partition), field).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: hget: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, partition, field string, value []byte) error {
	return r.client.HSet(ctx, r.hashKey(partition), field, value).Err()
}

func (r *RedisStore) Delete(ctx context.Context, partition, field string) error {
	return r.client.HDel(ctx, r.hashKey(partition), field).Err()
}

func (r *RedisStore) GetAll(ctx context.Context, partition string) (map[string][]byte, error) {
	all, err := r.client.HGetAll(ctx, r.hashKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("statestore: hgetall: %w", err)
	}
	out := make(map[string][]byte, len(all))
	for k, v := range all {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *RedisStore) DeletePartition(ctx context.Context, partition string) error {
	return r.client.Del(ctx, r.hashKey(partition)).Err()
}
