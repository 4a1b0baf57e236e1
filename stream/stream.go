// Package stream implements the Streaming Substrate (spec component C15):
// a producer publishes named chunks (start/progress/data/complete/error)
// against a stream id, and any number of independent consumers read a lazy
// sequence of those chunks, restartable from the beginning. Grounded on
// the teacher's journal/redis.go RedisStore (XADD/XRANGE against a
// per-actor stream key), generalized from "append-only actor journal" to
// "append-only, TTL'd, replayable chunk stream."
package stream

import (
	"context"
	"encoding/json"
	"time"
)

// ChunkType names one StreamChunk's position in its stream's lifecycle,
// per spec.md §4.11.
type ChunkType string

const (
	ChunkStart    ChunkType = "start"
	ChunkProgress ChunkType = "progress"
	ChunkData     ChunkType = "data"
	ChunkComplete ChunkType = "complete"
	ChunkError    ChunkType = "error"
)

// Progress is the optional payload of a ChunkProgress chunk.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// StreamChunk is one entry in a stream, per spec.md §4.11.
type StreamChunk struct {
	Type      ChunkType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Progress  *Progress       `json:"progress,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// terminalTTL bounds how long a completed or errored stream's chunks are
// retained, per spec.md §4.11 ("sets TTL on terminal chunk").
const terminalTTL = 1 * time.Hour

// Store is the stream transport contract: append-only per stream id, with
// positional reads so a consumer can restart from any offset (notably "0",
// for a fresh read of the whole stream).
type Store interface {
	// Publish appends chunk to streamID's stream.
	Publish(ctx context.Context, streamID string, chunk StreamChunk) error

	// Read returns the next chunk recorded after fromOffset (as returned
	// by a prior ReadResult's NextOffset; "0" reads from the start), with
	// NextOffset set to that chunk's offset. ReadResult.Chunks is empty,
	// not an error, when the stream has no new chunks yet.
	Read(ctx context.Context, streamID string, fromOffset string) (ReadResult, error)

	// Expire sets streamID's retention to terminalTTL, called once a
	// ChunkComplete or ChunkError chunk is published.
	Expire(ctx context.Context, streamID string) error
}

// ReadResult is one Read call's page of chunks plus the offset a
// subsequent Read should resume from.
type ReadResult struct {
	Chunks     []StreamChunk
	NextOffset string
}

// Producer is the write side of one stream id, per spec.md §4.11's
// publish/complete/error triad.
type Producer struct {
	store    Store
	streamID string
}

// NewProducer returns a Producer that writes to streamID.
func NewProducer(store Store, streamID string) *Producer {
	return &Producer{store: store, streamID: streamID}
}

// Start publishes the stream's opening chunk.
func (p *Producer) Start(ctx context.Context) error {
	return p.store.Publish(ctx, p.streamID, StreamChunk{Type: ChunkStart, Timestamp: time.Now()})
}

// Progress publishes a progress update.
func (p *Producer) Progress(ctx context.Context, current, total int, message string) error {
	return p.store.Publish(ctx, p.streamID, StreamChunk{
		Type:      ChunkProgress,
		Progress:  &Progress{Current: current, Total: total, Message: message},
		Timestamp: time.Now(),
	})
}

// Publish appends a data chunk carrying data, marshaled to JSON.
func (p *Producer) Publish(ctx context.Context, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.store.Publish(ctx, p.streamID, StreamChunk{Type: ChunkData, Data: raw, Timestamp: time.Now()})
}

// Complete publishes the terminal success chunk and sets the stream's TTL.
func (p *Producer) Complete(ctx context.Context) error {
	if err := p.store.Publish(ctx, p.streamID, StreamChunk{Type: ChunkComplete, Timestamp: time.Now()}); err != nil {
		return err
	}
	return p.store.Expire(ctx, p.streamID)
}

// Error publishes the terminal failure chunk and sets the stream's TTL.
func (p *Producer) Error(ctx context.Context, cause error) error {
	if err := p.store.Publish(ctx, p.streamID, StreamChunk{Type: ChunkError, Error: cause.Error(), Timestamp: time.Now()}); err != nil {
		return err
	}
	return p.store.Expire(ctx, p.streamID)
}

// Consumer reads one stream id as a lazy, restartable sequence of chunks.
// Multiple Consumers may read the same stream id independently; each
// tracks its own offset.
type Consumer struct {
	store      Store
	streamID   string
	pollDelay  time.Duration
	nextOffset string
}

// NewConsumer returns a Consumer that reads streamID starting at
// fromOffset ("0" for the beginning of the stream).
func NewConsumer(store Store, streamID, fromOffset string) *Consumer {
	if fromOffset == "" {
		fromOffset = "0"
	}
	return &Consumer{store: store, streamID: streamID, pollDelay: 200 * time.Millisecond, nextOffset: fromOffset}
}

// Next blocks (polling at c.pollDelay) until at least one new chunk is
// available, returning it and advancing the consumer's offset. It returns
// (chunk, false, nil) once a ChunkComplete or ChunkError chunk has been
// delivered, signaling the caller to stop iterating. ctx cancellation
// returns immediately with ctx.Err().
func (c *Consumer) Next(ctx context.Context) (StreamChunk, bool, error) {
	for {
		result, err := c.store.Read(ctx, c.streamID, c.nextOffset)
		if err != nil {
			return StreamChunk{}, false, err
		}
		if len(result.Chunks) > 0 {
			chunk := result.Chunks[0]
			c.nextOffset = advanceOffset(result, chunk)
			more := chunk.Type != ChunkComplete && chunk.Type != ChunkError
			return chunk, more, nil
		}
		select {
		case <-ctx.Done():
			return StreamChunk{}, false, ctx.Err()
		case <-time.After(c.pollDelay):
		}
	}
}

// advanceOffset computes the offset the next Read should resume from after
// delivering chunk. Stores return one chunk per Read, so this is the
// result's NextOffset.
func advanceOffset(result ReadResult, _ StreamChunk) string {
	return result.NextOffset
}

// Offset reports the consumer's current resume position, for callers that
// want to persist it across a restart.
func (c *Consumer) Offset() string { return c.nextOffset }
