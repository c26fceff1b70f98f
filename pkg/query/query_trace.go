package query

import (
	"slices"
	"sync"
)

type TraceEventKind string

const (
	TraceEventCommunityIDs     TraceEventKind = "community_ids"
	TraceEventQueriedEntityIDs TraceEventKind = "queried_entity_ids"
	TraceEventRelationships    TraceEventKind = "relationships"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	CommunityIDs  []int64
	EntityIDs     []int64
	Relationships []string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs or collect them for the caller,
// as the HTTP API does to report which communities grounded an answer.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordCommunityIDs(t Tracer, ids ...int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventCommunityIDs, CommunityIDs: ids})
}

func RecordQueriedEntityIDs(t Tracer, ids ...int64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventQueriedEntityIDs, EntityIDs: ids})
}

func RecordRelationships(t Tracer, lines ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRelationships, Relationships: lines})
}

// QueryTrace collects which communities, entities and relationship lines
// were placed into the prompt context of a query.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	communityIDs  map[int64]struct{}
	entityIDs     map[int64]struct{}
	relationships []string
}

type QueryTraceSnapshot struct {
	CommunityIDs  []int64  `json:"community_ids"`
	EntityIDs     []int64  `json:"entity_ids"`
	Relationships []string `json:"relationships"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		communityIDs: make(map[int64]struct{}),
		entityIDs:    make(map[int64]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventCommunityIDs:
		for _, id := range event.CommunityIDs {
			t.communityIDs[id] = struct{}{}
		}
	case TraceEventQueriedEntityIDs:
		for _, id := range event.EntityIDs {
			if id == 0 {
				continue
			}
			t.entityIDs[id] = struct{}{}
		}
	case TraceEventRelationships:
		t.relationships = append(t.relationships, event.Relationships...)
	default:
		return
	}
}

// Snapshot returns the recorded ids sorted ascending and the relationship
// lines in prompt order.
func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QueryTraceSnapshot{
		CommunityIDs:  make([]int64, 0, len(t.communityIDs)),
		EntityIDs:     make([]int64, 0, len(t.entityIDs)),
		Relationships: slices.Clone(t.relationships),
	}
	for id := range t.communityIDs {
		s.CommunityIDs = append(s.CommunityIDs, id)
	}
	for id := range t.entityIDs {
		s.EntityIDs = append(s.EntityIDs, id)
	}
	slices.Sort(s.CommunityIDs)
	slices.Sort(s.EntityIDs)
	if s.Relationships == nil {
		s.Relationships = []string{}
	}
	return s
}
