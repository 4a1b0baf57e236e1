package actor

import "time"

// Backoff identifies a retry delay shape, shared between per-actor-type
// infrastructure config and the workflow Retry action.
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffFixed       Backoff = "fixed"
)

// RetryPolicy configures automatic retry of a failed actor invocation.
type RetryPolicy struct {
	MaxAttempts    int
	Backoff        Backoff
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
}

// EvictionPriority controls how eagerly an idle actor instance is evicted
// from the runtime's pool under memory pressure.
type EvictionPriority string

const (
	EvictionHigh   EvictionPriority = "high"
	EvictionMedium EvictionPriority = "medium"
	EvictionLow    EvictionPriority = "low"
)

// MessageOrdering controls whether the worker serializes dispatch per actor
// id (fifo) or allows best-effort reordering of siblings (standard).
type MessageOrdering string

const (
	OrderingFIFO     MessageOrdering = "fifo"
	OrderingStandard MessageOrdering = "standard"
)

// Config is the per-actor-type infrastructure configuration table from
// spec.md §3, with the documented defaults.
type Config struct {
	Timeout                   time.Duration
	RetryPolicy               RetryPolicy
	IdempotencyTTL            time.Duration
	MessageOrdering           MessageOrdering
	EvictionPriority          EvictionPriority
	DeadLetterQueue           bool
	Concurrency               int
	JournalCompactionThreshold int
}

// DefaultConfig returns the documented defaults for an actor type's
// infrastructure configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		RetryPolicy: RetryPolicy{
			MaxAttempts:  3,
			Backoff:      BackoffExponential,
			InitialDelay: 1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2,
		},
		IdempotencyTTL:             86400 * time.Second,
		MessageOrdering:            OrderingStandard,
		EvictionPriority:           EvictionMedium,
		DeadLetterQueue:            true,
		Concurrency:                1,
		JournalCompactionThreshold: 100,
	}
}

// CalculateRetryDelay computes the delay before the next attempt, per the
// formulas in spec.md §4.4. attempt is 1-based (the attempt that just
// failed); the result is the wait before the *next* attempt.
func CalculateRetryDelay(p RetryPolicy, attempt int) time.Duration {
	cap := func(d time.Duration) time.Duration {
		if p.MaxDelay > 0 && d > p.MaxDelay {
			return p.MaxDelay
		}
		return d
	}
	switch p.Backoff {
	case BackoffLinear:
		return cap(p.InitialDelay * time.Duration(attempt))
	case BackoffFixed:
		return cap(p.InitialDelay)
	default: // exponential
		mult := p.Multiplier
		if mult <= 0 {
			mult = 2
		}
		d := float64(p.InitialDelay)
		for i := 1; i < attempt; i++ {
			d *= mult
		}
		return cap(time.Duration(d))
	}
}
