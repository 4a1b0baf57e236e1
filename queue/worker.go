package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/certo-ventures/loom/actor"
	"github.com/certo-ventures/loom/idempotency"
	"go.uber.org/zap"
)

// DispatchOutcome is how a Dispatcher's invocation of one message ended.
type DispatchOutcome int

const (
	DispatchCompleted DispatchOutcome = iota
	DispatchSuspended
)

// Dispatcher activates the actor named by a message and runs it to
// completion or suspension. It is implemented by the runtime package; the
// interface lives here (rather than being imported from runtime) so that
// queue does not depend on runtime, avoiding an import cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) (DispatchOutcome, error)
}

// Tracer receives dispatch lifecycle events. NewWorker installs a no-op
// Tracer; a Worker whose Tracer is set to nil skips tracing.
type Tracer interface {
	Emit(ctx context.Context, event string, fields map[string]any)
}

type noopTracer struct{}

func (noopTracer) Emit(context.Context, string, map[string]any) {}

// Worker is the Queue Worker (spec component C9): it polls a Queue, checks
// the idempotency store before invoking the actor, and retries, delays, or
// dead-letters on failure per the actor type's Config.
type Worker struct {
	Queue       Queue
	Dispatcher  Dispatcher
	Idempotency idempotency.Store
	Config      actor.Config
	QueueName   string
	WorkerID    string
	Tracer      Tracer
	Log         *zap.Logger

	pollTimeout time.Duration

	mu        sync.Mutex
	actorLock map[string]*sync.Mutex // actorID -> mutex, used only under fifo ordering
	sem       chan struct{}
}

// NewWorker constructs a Worker with the documented 1s poll timeout. logger
// defaults to zap.NewNop() when nil.
func NewWorker(q Queue, d Dispatcher, idem idempotency.Store, cfg actor.Config, queueName, workerID string, logger *zap.Logger) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		Queue:       q,
		Dispatcher:  d,
		Idempotency: idem,
		Config:      cfg,
		QueueName:   queueName,
		WorkerID:    workerID,
		Tracer:      noopTracer{},
		Log:         logger,
		pollTimeout: 1 * time.Second,
		actorLock:   make(map[string]*sync.Mutex),
		sem:         make(chan struct{}, concurrency),
	}
}

func (w *Worker) trace(ctx context.Context, event string, fields map[string]any) {
	if w.Tracer == nil {
		return
	}
	w.Tracer.Emit(ctx, event, fields)
}

// Run polls the queue until ctx is cancelled, dispatching each message per
// spec.md §4.4's loop. Under fifo ordering, messages for the same actor are
// never processed concurrently with one another; under standard ordering,
// up to Config.Concurrency messages run at once regardless of actor id.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, ok, err := w.Queue.Dequeue(ctx, w.QueueName, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("queue dequeue failed", zap.String("queue", w.QueueName), zap.Error(err))
			w.trace(ctx, "queue_dequeue_error", map[string]any{"error": err.Error()})
			continue
		}
		if !ok {
			continue
		}

		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		go func(m Message) {
			defer func() { <-w.sem }()
			w.handle(ctx, m)
		}(msg)
	}
}

func (w *Worker) actorMutex(actorID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.actorLock[actorID]
	if !ok {
		l = &sync.Mutex{}
		w.actorLock[actorID] = l
	}
	return l
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	if w.Config.MessageOrdering == actor.OrderingFIFO {
		l := w.actorMutex(msg.ActorID)
		l.Lock()
		defer l.Unlock()
	}

	if key := msg.Metadata.IdempotencyKey; key != "" && w.Idempotency != nil {
		if _, found, err := w.Idempotency.Get(ctx, key); err == nil && found {
			w.trace(ctx, "message_deduplicated", map[string]any{
				"message_id": msg.MessageID, "idempotency_key": key,
			})
			_ = w.Queue.Ack(ctx, w.QueueName, msg)
			return
		}
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, w.Config.Timeout)
	defer cancel()

	outcome, err := w.Dispatcher.Dispatch(dispatchCtx, msg)

	if err == nil {
		if outcome == DispatchSuspended {
			// Durable state already reflects the suspension; nothing more
			// to redeliver.
			_ = w.Queue.Ack(ctx, w.QueueName, msg)
			return
		}
		if key := msg.Metadata.IdempotencyKey; key != "" && w.Idempotency != nil {
			_, _ = w.Idempotency.PutIfAbsent(ctx, idempotency.Record{
				Key:         key,
				ActorID:     msg.ActorID,
				ExecutedAt:  time.Now(),
				ExpiresAt:   time.Now().Add(w.Config.IdempotencyTTL),
				MessageID:   msg.MessageID,
			})
		}
		_ = w.Queue.Ack(ctx, w.QueueName, msg)
		return
	}

	w.Log.Info("dispatch failed", zap.String("message_id", msg.MessageID), zap.String("actor_id", msg.ActorID), zap.Error(err))
	w.trace(ctx, "dispatch_failed", map[string]any{
		"message_id": msg.MessageID, "actor_id": msg.ActorID, "error": err.Error(),
	})

	attempt := msg.Metadata.DeliveryAttempt + 1
	if attempt < w.Config.RetryPolicy.MaxAttempts {
		delay := actor.CalculateRetryDelay(w.Config.RetryPolicy, attempt)
		msg.Metadata.DeliveryAttempt = attempt
		if nackErr := w.Queue.Nack(ctx, w.QueueName, msg, delay); nackErr != nil {
			w.Log.Error("nack failed", zap.String("message_id", msg.MessageID), zap.Error(nackErr))
			w.trace(ctx, "nack_failed", map[string]any{"error": nackErr.Error()})
		}
		return
	}

	if w.Config.DeadLetterQueue {
		reason := fmt.Sprintf("max attempts (%d) exceeded: %v", w.Config.RetryPolicy.MaxAttempts, err)
		w.Log.Warn("message dead-lettered", zap.String("message_id", msg.MessageID), zap.String("actor_id", msg.ActorID), zap.String("reason", reason))
		if dlqErr := w.Queue.DeadLetter(ctx, w.QueueName, msg, reason); dlqErr != nil {
			w.Log.Error("dead letter failed", zap.String("message_id", msg.MessageID), zap.Error(dlqErr))
			w.trace(ctx, "dead_letter_failed", map[string]any{"error": dlqErr.Error()})
		}
		return
	}
	_ = w.Queue.Ack(ctx, w.QueueName, msg)
}
