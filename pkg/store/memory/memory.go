// Package memory is an in-process GraphStorage. Retrieval scores entities by
// keyword overlap with the query, so no embedding model is required.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/store"
)

type relationKey struct {
	source, label, target string
}

// GraphMemoryStorage keeps the whole graph in maps guarded by a RWMutex.
type GraphMemoryStorage struct {
	mu        sync.RWMutex
	entities  map[string]common.Entity
	relations []common.Relation
	relIdx    map[relationKey]int
	chunks    map[string]common.Chunk
}

var _ store.GraphStorage = (*GraphMemoryStorage)(nil)

func NewGraphMemoryStorage() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		entities: make(map[string]common.Entity),
		relIdx:   make(map[relationKey]int),
		chunks:   make(map[string]common.Chunk),
	}
}

func (s *GraphMemoryStorage) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delta := store.CollectGraph(chunks)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		c.Entities, c.Relations = nil, nil
		s.chunks[c.ID] = c
	}
	for _, e := range delta.Entities {
		existing, ok := s.entities[e.Name]
		if ok && e.Type == "" && e.Description == "" && len(e.Properties) == 0 {
			continue
		}
		if ok && e.Type == "" {
			e.Type = existing.Type
		}
		s.entities[e.Name] = e
	}
	for _, r := range delta.Relations {
		key := relationKey{r.Source, r.Label, r.Target}
		if i, ok := s.relIdx[key]; ok {
			s.relations[i] = r
			continue
		}
		s.relIdx[key] = len(s.relations)
		s.relations = append(s.relations, r)
	}
	return nil
}

func (s *GraphMemoryStorage) GetTriplets(ctx context.Context) ([]common.Triplet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Triplet, 0, len(s.relations))
	for _, r := range s.relations {
		out = append(out, common.Triplet{
			Source:   s.entities[r.Source],
			Relation: r,
			Target:   s.entities[r.Target],
		})
	}
	return out, nil
}

func (s *GraphMemoryStorage) CountTriplets(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.relations), nil
}

// Retrieve ranks entities by how many distinct query words occur in their
// name or description and returns one node per entity listing its relations.
func (s *GraphMemoryStorage) Retrieve(ctx context.Context, query string, topK int) ([]common.RetrievedNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := store.QueryTerms(query)
	if len(terms) == 0 || topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		name  string
		score float64
	}
	var hits []hit
	for name, e := range s.entities {
		haystack := strings.ToLower(e.Name + " " + e.Description)
		matched := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, hit{name: name, score: float64(matched) / float64(len(terms))})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	nodes := make([]common.RetrievedNode, 0, len(hits))
	for _, h := range hits {
		var lines []string
		for _, r := range s.relations {
			if r.Source == h.name || r.Target == h.name {
				lines = append(lines, store.FormatRelationLine(r.Source, r.Label, r.Target))
			}
		}
		if len(lines) == 0 {
			continue
		}
		nodes = append(nodes, common.RetrievedNode{Text: strings.Join(lines, "\n"), Score: h.score})
	}
	return nodes, nil
}

func (s *GraphMemoryStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *GraphMemoryStorage) Close() {}
