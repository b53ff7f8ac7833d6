package query

import (
	"slices"
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventRetrievedEntities TraceEventKind = "retrieved_entities"
	TraceEventUsedCommunities   TraceEventKind = "used_communities"
)

// TraceEvent is an extensible event envelope for query tracing.
type TraceEvent struct {
	Kind TraceEventKind

	Entities    []string
	Communities []int
}

// Tracer is a sink for query tracing events.
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

func RecordRetrievedEntities(t Tracer, names ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRetrievedEntities, Entities: names})
}

func RecordUsedCommunities(t Tracer, ids ...int) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedCommunities, Communities: ids})
}

// QueryTrace collects which entities and communities a question touched.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	entities    map[string]struct{}
	communities map[int]struct{}
}

type QueryTraceSnapshot struct {
	Entities    []string `json:"entities"`
	Communities []int    `json:"communities"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		entities:    make(map[string]struct{}),
		communities: make(map[int]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventRetrievedEntities:
		for _, name := range event.Entities {
			if name == "" {
				continue
			}
			t.entities[name] = struct{}{}
		}
	case TraceEventUsedCommunities:
		for _, id := range event.Communities {
			t.communities[id] = struct{}{}
		}
	default:
		return
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QueryTraceSnapshot{
		Entities:    make([]string, 0, len(t.entities)),
		Communities: make([]int, 0, len(t.communities)),
	}
	for name := range t.entities {
		s.Entities = append(s.Entities, name)
	}
	for id := range t.communities {
		s.Communities = append(s.Communities, id)
	}

	sort.Strings(s.Entities)
	slices.Sort(s.Communities)

	return s
}
