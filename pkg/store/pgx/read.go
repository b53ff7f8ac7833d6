package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/store"

	"github.com/pgvector/pgvector-go"
)

const tripletsSQL = `
SELECT r.source, r.target, r.label, r.description, r.properties,
       s.type, s.description, s.properties,
       t.type, t.description, t.properties
FROM graph_relations r
JOIN graph_entities s ON s.name = r.source
JOIN graph_entities t ON t.name = r.target
ORDER BY r.id`

func (s *GraphDBStorage) GetTriplets(ctx context.Context) ([]common.Triplet, error) {
	rows, err := s.conn.Query(ctx, tripletsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Triplet
	for rows.Next() {
		var t common.Triplet
		if err := rows.Scan(
			&t.Relation.Source, &t.Relation.Target, &t.Relation.Label, &t.Relation.Description, &t.Relation.Properties,
			&t.Source.Type, &t.Source.Description, &t.Source.Properties,
			&t.Target.Type, &t.Target.Description, &t.Target.Properties,
		); err != nil {
			return nil, err
		}
		t.Source.Name = t.Relation.Source
		t.Target.Name = t.Relation.Target
		out = append(out, t)
	}
	return out, rows.Err()
}

const vectorHitsSQL = `
SELECT name, 1 - (embedding <=> $1) AS score
FROM graph_entities
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2`

const keywordHitsSQL = `
SELECT name, count(*)::float8 AS score
FROM graph_entities, unnest($1::text[]) AS term
WHERE name ILIKE '%' || term || '%' ESCAPE '\'
   OR description ILIKE '%' || term || '%' ESCAPE '\'
GROUP BY name
ORDER BY score DESC, name
LIMIT $2`

const neighborhoodSQL = `
SELECT source, label, target
FROM graph_relations
WHERE source = ANY($1) OR target = ANY($1)
ORDER BY id`

type hit struct {
	name  string
	score float64
}

// Retrieve finds the topK entities closest to query and returns one node per
// entity listing every relation that touches it.
func (s *GraphDBStorage) Retrieve(ctx context.Context, query string, topK int) ([]common.RetrievedNode, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	hits, err := s.entityHits(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.name)
	}
	rows, err := s.conn.Query(ctx, neighborhoodSQL, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make(map[string][]string, len(hits))
	for rows.Next() {
		var src, label, tgt string
		if err := rows.Scan(&src, &label, &tgt); err != nil {
			return nil, err
		}
		line := store.FormatRelationLine(src, label, tgt)
		lines[src] = append(lines[src], line)
		if tgt != src {
			lines[tgt] = append(lines[tgt], line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	nodes := make([]common.RetrievedNode, 0, len(hits))
	for _, h := range hits {
		if len(lines[h.name]) == 0 {
			continue
		}
		nodes = append(nodes, common.RetrievedNode{Text: strings.Join(lines[h.name], "\n"), Score: h.score})
	}
	return nodes, nil
}

func (s *GraphDBStorage) entityHits(ctx context.Context, query string, topK int) ([]hit, error) {
	var (
		sql  string
		args []any
	)
	if s.aiClient != nil {
		emb, err := s.aiClient.GenerateEmbedding(ctx, []byte(query))
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		sql, args = vectorHitsSQL, []any{pgvector.NewVector(emb), topK}
	} else {
		terms := store.QueryTerms(query)
		if len(terms) == 0 {
			return nil, nil
		}
		for i, t := range terms {
			terms[i] = store.EscapeLike(t)
		}
		sql, args = keywordHitsSQL, []any{terms, topK}
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.name, &h.score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
