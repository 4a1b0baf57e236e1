package trace

import "sync"

// BufferedEmitter stores spans in memory, organized by trace id, grounded
// on the teacher's graph/emit.BufferedEmitter.
type BufferedEmitter struct {
	mu    sync.RWMutex
	spans map[string][]Span // traceID -> spans
}

// NewBufferedEmitter constructs an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{spans: make(map[string][]Span)}
}

func (b *BufferedEmitter) Emit(span Span) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spans[span.TraceID] = append(b.spans[span.TraceID], span)
}

// Filter specifies optional criteria for GetEventsWithFilter.
type Filter struct {
	EventType EventType
	Status    Status
}

// GetTrace returns all spans for traceID ordered by emission time.
func (b *BufferedEmitter) GetTrace(traceID string) []Span {
	b.mu.RLock()
	defer b.mu.RUnlock()
	spans := b.spans[traceID]
	out := make([]Span, len(spans))
	copy(out, spans)
	return out
}

// GetEventsByType returns traceID's spans whose EventType matches eventType.
func (b *BufferedEmitter) GetEventsByType(traceID string, eventType EventType) []Span {
	return b.GetEventsWithFilter(traceID, Filter{EventType: eventType})
}

// GetFailures returns traceID's spans with Status == StatusError.
func (b *BufferedEmitter) GetFailures(traceID string) []Span {
	return b.GetEventsWithFilter(traceID, Filter{Status: StatusError})
}

// GetEventsWithFilter applies filter (AND semantics across set fields) to
// traceID's spans.
func (b *BufferedEmitter) GetEventsWithFilter(traceID string, filter Filter) []Span {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Span
	for _, s := range b.spans[traceID] {
		if filter.EventType != "" && s.EventType != filter.EventType {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Clear removes spans for traceID, or all spans if traceID is empty.
func (b *BufferedEmitter) Clear(traceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if traceID == "" {
		b.spans = make(map[string][]Span)
		return
	}
	delete(b.spans, traceID)
}
