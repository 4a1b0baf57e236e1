package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/certo-ventures/loom/actor"
)

// RedisStore backs the journal with Redis Streams (XADD/XRANGE/XDEL/XLEN),
// grounded on evalgo-org-eve's queue/redis/queue.go client-construction and
// context-per-call pattern, generalized from a job list to a per-actor
// append-only stream.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig configures a RedisStore, mirroring evalgo's Config{RedisURL,
// KeyPrefix} shape.
type RedisConfig struct {
	RedisURL  string
	KeyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("journal: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("journal: ping redis: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, used by tests
// against miniredis and by callers sharing one client across components.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) streamKey(actorID string) string { return fmt.Sprintf("%s:journal:%s", r.prefix, actorID) }
func (r *RedisStore) snapKey(actorID string) string    { return fmt.Sprintf("%s:journal:%s:snapshot", r.prefix, actorID) }

func (r *RedisStore) AppendEntry(ctx context.Context, actorID string, entry actor.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamKey(actorID),
		Values: map[string]any{"entry": raw},
	}).Err()
}

func (r *RedisStore) ReadEntries(ctx context.Context, actorID string) ([]actor.Entry, error) {
	msgs, err := r.client.XRange(ctx, r.streamKey(actorID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("journal: xrange: %w", err)
	}
	out := make([]actor.Entry, 0, len(msgs))
	for _, m := range msgs {
		raw, _ := m.Values["entry"].(string)
		var e actor.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("journal: parse entry %s: %w", m.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *RedisStore) SaveSnapshot(ctx context.Context, actorID string, snap actor.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot: %w", err)
	}
	return r.client.Set(ctx, r.snapKey(actorID), raw, 0).Err()
}

func (r *RedisStore) GetLatestSnapshot(ctx context.Context, actorID string) (actor.Snapshot, error) {
	raw, err := r.client.Get(ctx, r.snapKey(actorID)).Bytes()
	if err == redis.Nil {
		return actor.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return actor.Snapshot{}, fmt.Errorf("journal: get snapshot: %w", err)
	}
	var snap actor.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// Corrupt snapshot is treated as absent, per spec.md §4.1: never
		// propagated as an error, always forces a full replay.
		return actor.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (r *RedisStore) TrimEntries(ctx context.Context, actorID string, beforeCursor int) error {
	if beforeCursor <= 0 {
		return nil
	}
	msgs, err := r.client.XRange(ctx, r.streamKey(actorID), "-", "+").Result()
	if err != nil {
		return fmt.Errorf("journal: xrange: %w", err)
	}
	end := beforeCursor
	if end > len(msgs) {
		end = len(msgs)
	}
	if end == 0 {
		return nil
	}
	ids := make([]string, 0, end)
	for _, m := range msgs[:end] {
		ids = append(ids, m.ID)
	}
	return r.client.XDel(ctx, r.streamKey(actorID), ids...).Err()
}

func (r *RedisStore) DeleteJournal(ctx context.Context, actorID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.streamKey(actorID))
	pipe.Del(ctx, r.snapKey(actorID))
	_, err := pipe.Exec(ctx)
	return err
}
