package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a durable Queue backed by Redis sorted sets (for
// priority/delay ordering) and a processing hash (for ack/nack/dead-letter
// tracking), grounded on evalgo-org-eve/queue/redis/queue.go's
// Enqueue/Dequeue/MarkProcessing/CompleteJob/FailJob/GetQueueDepth.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// RedisQueueConfig configures a RedisQueue.
type RedisQueueConfig struct {
	RedisURL  string
	KeyPrefix string
}

// NewRedisQueue dials Redis per cfg and verifies connectivity.
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: connect redis: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisQueue{client: client, prefix: prefix}, nil
}

// NewRedisQueueFromClient wraps an already-constructed client, for tests and
// shared-connection deployments.
func NewRedisQueueFromClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "loom"
	}
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) readyKey(queueName string) string   { return fmt.Sprintf("%s:q:%s:ready", q.prefix, queueName) }
func (q *RedisQueue) delayedKey(queueName string) string { return fmt.Sprintf("%s:q:%s:delayed", q.prefix, queueName) }
func (q *RedisQueue) activeKey(queueName string) string  { return fmt.Sprintf("%s:q:%s:active", q.prefix, queueName) }
func (q *RedisQueue) dlqKey(queueName string) string     { return fmt.Sprintf("%s:q:%s:dlq", q.prefix, queueName) }
func (q *RedisQueue) statsKey(queueName string) string   { return fmt.Sprintf("%s:q:%s:stats", q.prefix, queueName) }

// score orders by priority first (lower wins), then by delivery time, so a
// ZPOPMIN/BZPOPMIN on the ready set yields the teacher's min-heap ordering.
func score(priority int, at time.Time) float64 {
	return float64(priority)*1e15 + float64(at.UnixNano())/1e6
}

func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, msg Message, opts Options) error {
	now := time.Now()
	msg.Metadata.Priority = opts.Priority
	if msg.Metadata.Timestamp.IsZero() {
		msg.Metadata.Timestamp = now
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: marshal message: %w", err)
	}

	if opts.Delay > 0 {
		readyAt := now.Add(opts.Delay)
		if err := q.client.ZAdd(ctx, q.delayedKey(queueName), redis.Z{
			Score: float64(readyAt.UnixNano()), Member: payload,
		}).Err(); err != nil {
			return fmt.Errorf("queue: enqueue delayed: %w", err)
		}
		return q.client.HIncrBy(ctx, q.statsKey(queueName), string(StatusDelayed), 1).Err()
	}

	if err := q.client.ZAdd(ctx, q.readyKey(queueName), redis.Z{
		Score: score(opts.Priority, now), Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return q.client.HIncrBy(ctx, q.statsKey(queueName), string(StatusQueued), 1).Err()
}

// promoteDelayed moves any delayed entries whose deadline has passed onto
// the ready set.
func (q *RedisQueue) promoteDelayed(ctx context.Context, queueName string) error {
	now := time.Now()
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(queueName), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.UnixNano()),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}
	pipe := q.client.TxPipeline()
	for _, raw := range due {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		pipe.ZRem(ctx, q.delayedKey(queueName), raw)
		pipe.ZAdd(ctx, q.readyKey(queueName), redis.Z{Score: score(msg.Metadata.Priority, now), Member: raw})
		pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusDelayed), -1)
		pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusQueued), 1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (Message, bool, error) {
	if err := q.promoteDelayed(ctx, queueName); err != nil {
		return Message{}, false, fmt.Errorf("queue: promote delayed: %w", err)
	}

	res, err := q.client.ZPopMin(ctx, q.readyKey(queueName), 1).Result()
	if err != nil {
		return Message{}, false, fmt.Errorf("queue: dequeue: %w", err)
	}
	if len(res) == 0 {
		deadline := time.Now().Add(timeout)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for time.Now().Before(deadline) {
			select {
			case <-ctx.Done():
				return Message{}, false, ctx.Err()
			case <-ticker.C:
			}
			if err := q.promoteDelayed(ctx, queueName); err != nil {
				return Message{}, false, err
			}
			res, err = q.client.ZPopMin(ctx, q.readyKey(queueName), 1).Result()
			if err != nil {
				return Message{}, false, fmt.Errorf("queue: dequeue: %w", err)
			}
			if len(res) > 0 {
				break
			}
		}
		if len(res) == 0 {
			return Message{}, false, nil
		}
	}

	raw, _ := res[0].Member.(string)
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, false, fmt.Errorf("queue: unmarshal message: %w", err)
	}

	payload, _ := json.Marshal(msg)
	if err := q.client.HSet(ctx, q.activeKey(queueName), msg.MessageID, payload).Err(); err != nil {
		return Message{}, false, fmt.Errorf("queue: mark active: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusQueued), -1)
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusActive), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return Message{}, false, fmt.Errorf("queue: update stats: %w", err)
	}
	return msg, true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, queueName string, msg Message) error {
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, q.activeKey(queueName), msg.MessageID)
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusActive), -1)
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusCompleted), 1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, queueName string, msg Message, delay time.Duration) error {
	if err := q.client.HDel(ctx, q.activeKey(queueName), msg.MessageID).Err(); err != nil {
		return fmt.Errorf("queue: nack: %w", err)
	}
	if err := q.client.HIncrBy(ctx, q.statsKey(queueName), string(StatusActive), -1).Err(); err != nil {
		return fmt.Errorf("queue: nack: %w", err)
	}
	return q.Enqueue(ctx, queueName, msg, Options{Priority: msg.Metadata.Priority, Delay: delay})
}

func (q *RedisQueue) DeadLetter(ctx context.Context, queueName string, msg Message, reason string) error {
	job := Job{
		JobID:     msg.MessageID,
		QueueName: queueName,
		Message:   msg,
		Status:    StatusFailed,
		UpdatedAt: time.Now(),
		Attempts:  []Attempt{{Status: AttemptFailed, Error: reason, Timestamp: time.Now()}},
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal dead letter: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HDel(ctx, q.activeKey(queueName), msg.MessageID)
	pipe.RPush(ctx, q.dlqKey(queueName), payload)
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusActive), -1)
	pipe.HIncrBy(ctx, q.statsKey(queueName), string(StatusFailed), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: dead letter: %w", err)
	}
	return nil
}

func (q *RedisQueue) Stats(ctx context.Context, queueName string) (Stats, error) {
	raw, err := q.client.HGetAll(ctx, q.statsKey(queueName)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("queue: stats: %w", err)
	}
	totals := make(map[Status]int, len(raw))
	for k, v := range raw {
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		totals[Status(k)] = n
	}
	return Stats{Totals: totals, LastUpdated: time.Now()}, nil
}
