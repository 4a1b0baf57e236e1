package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs Store with Redis Streams (XADD/XRANGE/EXPIRE), grounded
// on the journal package's RedisStore, generalized from a per-actor append
// log to a per-stream-id chunk log with bounded-offset paging instead of a
// full-range read on every call.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an already-constructed client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(streamID string) string {
	return fmt.Sprintf("%s:stream:%s", r.prefix, streamID)
}

func (r *RedisStore) Publish(ctx context.Context, streamID string, chunk StreamChunk) error {
	raw, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("stream: marshal chunk: %w", err)
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.key(streamID),
		Values: map[string]any{"chunk": raw},
	}).Err()
}

// Read returns the first chunk strictly after fromOffset (Redis Streams'
// "(id" exclusive-range syntax), or the stream's first chunk when
// fromOffset is "0"; NextOffset is that chunk's stream ID.
func (r *RedisStore) Read(ctx context.Context, streamID string, fromOffset string) (ReadResult, error) {
	start := fromOffset
	if start != "0" {
		start = "(" + start
	}
	msgs, err := r.client.XRange(ctx, r.key(streamID), start, "+").Result()
	if err != nil {
		return ReadResult{}, fmt.Errorf("stream: xrange: %w", err)
	}
	if len(msgs) == 0 {
		return ReadResult{NextOffset: fromOffset}, nil
	}

	first := msgs[0]
	raw, _ := first.Values["chunk"].(string)
	var c StreamChunk
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ReadResult{}, fmt.Errorf("stream: parse chunk %s: %w", first.ID, err)
	}
	return ReadResult{Chunks: []StreamChunk{c}, NextOffset: first.ID}, nil
}

func (r *RedisStore) Expire(ctx context.Context, streamID string) error {
	return r.client.Expire(ctx, r.key(streamID), terminalTTL).Err()
}
