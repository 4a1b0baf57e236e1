package trace

import (
	"context"
	"encoding/json"
	"fmt"

	kivik "github.com/go-kivik/kivik/v4"
)

// DocumentReader queries a document store of persisted spans, partitioned
// by trace id, grounded on evalgo-org-eve/db/couchdb_query.go's Find over a
// Mango selector.
type DocumentReader struct {
	client *kivik.Client
	db     *kivik.DB
}

// DocumentReaderConfig configures a DocumentReader.
type DocumentReaderConfig struct {
	URL      string
	Database string
}

// NewDocumentReader connects to the document store and ensures Database
// exists.
func NewDocumentReader(ctx context.Context, cfg DocumentReaderConfig) (*DocumentReader, error) {
	client, err := kivik.New("couch", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("trace: connect document store: %w", err)
	}
	exists, err := client.DBExists(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("trace: check database: %w", err)
	}
	if !exists {
		if err := client.CreateDB(ctx, cfg.Database); err != nil {
			return nil, fmt.Errorf("trace: create database: %w", err)
		}
	}
	return &DocumentReader{client: client, db: client.DB(cfg.Database)}, nil
}

// Persist writes span as a document keyed by "trace_id:span_id", enabling
// the partitioned queries below.
func (d *DocumentReader) Persist(ctx context.Context, span Span) error {
	doc := map[string]any{"_id": span.TraceID + ":" + span.SpanID}
	raw, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("trace: marshal span: %w", err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("trace: re-marshal span: %w", err)
	}
	_, err = d.db.Put(ctx, doc["_id"].(string), doc)
	if err != nil {
		return fmt.Errorf("trace: persist span: %w", err)
	}
	return nil
}

func (d *DocumentReader) find(ctx context.Context, selector map[string]any) ([]Span, error) {
	rows := d.db.Find(ctx, map[string]any{"selector": selector, "sort": []map[string]string{{"timestamp": "asc"}}})
	defer rows.Close()

	var out []Span
	for rows.Next() {
		var s Span
		if err := rows.ScanDoc(&s); err != nil {
			return nil, fmt.Errorf("trace: scan span: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTrace returns all spans for traceID ordered by timestamp.
func (d *DocumentReader) GetTrace(ctx context.Context, traceID string) ([]Span, error) {
	return d.find(ctx, map[string]any{"trace_id": traceID})
}

// GetEventsByType returns traceID's spans with the given event type.
func (d *DocumentReader) GetEventsByType(ctx context.Context, traceID string, eventType EventType) ([]Span, error) {
	return d.find(ctx, map[string]any{"trace_id": traceID, "event_type": string(eventType)})
}

// GetFailures returns traceID's spans with an error status.
func (d *DocumentReader) GetFailures(ctx context.Context, traceID string) ([]Span, error) {
	return d.find(ctx, map[string]any{"trace_id": traceID, "status": string(StatusError)})
}

// CrossTraceFilter selects spans across all traces by time range, status,
// and event type.
type CrossTraceFilter struct {
	Since     string
	Until     string
	Status    Status
	EventType EventType
}

// Search applies filter across all partitions.
func (d *DocumentReader) Search(ctx context.Context, filter CrossTraceFilter) ([]Span, error) {
	selector := map[string]any{}
	if filter.Status != "" {
		selector["status"] = string(filter.Status)
	}
	if filter.EventType != "" {
		selector["event_type"] = string(filter.EventType)
	}
	if filter.Since != "" || filter.Until != "" {
		ts := map[string]any{}
		if filter.Since != "" {
			ts["$gte"] = filter.Since
		}
		if filter.Until != "" {
			ts["$lte"] = filter.Until
		}
		selector["timestamp"] = ts
	}
	return d.find(ctx, selector)
}
