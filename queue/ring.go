package queue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// item is one entry held in a Ring's internal heap.
type item struct {
	job     *Job
	readyAt time.Time
	seq     uint64 // insertion order, for deterministic tie-breaking
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if !h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].readyAt.Before(h[j].readyAt)
	}
	if h[i].job.Message.Metadata.Priority != h[j].job.Message.Metadata.Priority {
		return h[i].job.Message.Metadata.Priority < h[j].job.Message.Metadata.Priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(*item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// RingMetrics is a point-in-time snapshot of a Ring's admission behavior.
type RingMetrics struct {
	Depth               int
	PeakDepth           int
	BackpressureEvents  int
	TotalEnqueued       uint64
	TotalDequeued       uint64
}

// Ring is a bounded, priority- and delay-aware in-memory frontier, the
// shape of the teacher's graph/scheduler.go Frontier[S] (heap for
// deterministic ordering plus a buffered channel for bounded backpressure)
// generalized from scheduler work items to queue Jobs, per spec.md §5
// ("No unbounded in-memory queues inside components").
type Ring struct {
	mu   sync.Mutex
	h    itemHeap
	sig  chan struct{}
	cap  int
	seq  atomic.Uint64

	totalEnqueued      atomic.Uint64
	totalDequeued      atomic.Uint64
	backpressureEvents atomic.Int32
	peakDepth          atomic.Int32
}

// NewRing constructs a Ring with the given bounded capacity.
func NewRing(capacity int) *Ring {
	r := &Ring{sig: make(chan struct{}, capacity), cap: capacity}
	heap.Init(&r.h)
	return r
}

// Push admits a job, blocking until capacity is available or ctx is done.
// readyAt is the earliest time the job may be returned by Pop (delayed
// delivery); pass time.Now() for immediate eligibility.
func (r *Ring) Push(ctx context.Context, job *Job, readyAt time.Time) error {
	select {
	case r.sig <- struct{}{}:
	default:
		r.backpressureEvents.Add(1)
		select {
		case r.sig <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	heap.Push(&r.h, &item{job: job, readyAt: readyAt, seq: r.seq.Add(1)})
	depth := int32(r.h.Len())
	r.mu.Unlock()

	for {
		peak := r.peakDepth.Load()
		if depth <= peak || r.peakDepth.CompareAndSwap(peak, depth) {
			break
		}
	}
	r.totalEnqueued.Add(1)
	return nil
}

// Pop removes and returns the highest-priority ready job, or (nil, false) if
// none is ready yet (either the ring is empty or the earliest job's readyAt
// is still in the future).
func (r *Ring) Pop(now time.Time) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.h.Len() == 0 {
		return nil, false
	}
	// Among the jobs ready at now, take the lowest priority value, breaking
	// ties by insertion order.
	best := -1
	for i, it := range r.h {
		if it.readyAt.After(now) {
			continue
		}
		p := it.job.Message.Metadata.Priority
		if best < 0 || p < r.h[best].job.Message.Metadata.Priority ||
			(p == r.h[best].job.Message.Metadata.Priority && it.seq < r.h[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	it := heap.Remove(&r.h, best).(*item)
	select {
	case <-r.sig:
	default:
	}
	r.totalDequeued.Add(1)
	return it.job, true
}

// Len returns the current number of jobs held in the ring (ready or
// delayed).
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.h.Len()
}

// Metrics returns a snapshot of admission counters.
func (r *Ring) Metrics() RingMetrics {
	return RingMetrics{
		Depth:              r.Len(),
		PeakDepth:          int(r.peakDepth.Load()),
		BackpressureEvents: int(r.backpressureEvents.Load()),
		TotalEnqueued:      r.totalEnqueued.Load(),
		TotalDequeued:      r.totalDequeued.Load(),
	}
}
