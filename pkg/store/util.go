package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/common"

	"golang.org/x/sync/errgroup"
)

func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// FormatRelationLine renders a relation the way retrieval results expose it.
// Underscores in the label become spaces so that labels like supported_by
// read as plain words.
func FormatRelationLine(source, label, target string) string {
	return fmt.Sprintf("%s -> %s -> %s", source, strings.ReplaceAll(label, "_", " "), target)
}

// EntityEmbeddingText is the text embedded for an entity.
func EntityEmbeddingText(e common.Entity) string {
	if e.Description == "" {
		return e.Name
	}
	return e.Name + ": " + e.Description
}

// GraphDelta is the flattened content of a batch of chunks.
type GraphDelta struct {
	Entities  []common.Entity
	Relations []common.Relation
}

type relationKey struct {
	source, label, target string
}

// CollectGraph flattens chunk entities and relations. Entities are unique by
// name and relations by (source, label, target); the last occurrence wins but
// keeps the position of the first. Relation endpoints without an entity
// record get a bare entity so every relation can be stored.
func CollectGraph(chunks []common.Chunk) GraphDelta {
	entityIdx := make(map[string]int)
	relationIdx := make(map[relationKey]int)
	var delta GraphDelta

	putEntity := func(e common.Entity, overwrite bool) {
		if i, ok := entityIdx[e.Name]; ok {
			if overwrite {
				if e.Type == "" {
					e.Type = delta.Entities[i].Type
				}
				delta.Entities[i] = e
			}
			return
		}
		entityIdx[e.Name] = len(delta.Entities)
		delta.Entities = append(delta.Entities, e)
	}

	for _, c := range chunks {
		for _, e := range c.Entities {
			putEntity(e, true)
		}
		for _, r := range c.Relations {
			putEntity(common.Entity{Name: r.Source}, false)
			putEntity(common.Entity{Name: r.Target}, false)

			key := relationKey{r.Source, r.Label, r.Target}
			if i, ok := relationIdx[key]; ok {
				delta.Relations[i] = r
				continue
			}
			relationIdx[key] = len(delta.Relations)
			delta.Relations = append(delta.Relations, r)
		}
	}
	return delta
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// GenerateEmbeddings embeds inputs in order, using a batch endpoint when the
// client offers one.
func GenerateEmbeddings(
	ctx context.Context,
	client ai.GraphAIClient,
	inputs []string,
	parallel int,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := client.(embeddingBatcher); ok {
		out := make([][]float32, 0, len(inputs))
		err := ChunkRange(len(inputs), 64, func(start, end int) error {
			res, err := b.GenerateEmbeddings(ctx, inputs[start:end])
			if err != nil {
				return err
			}
			out = append(out, res...)
			return nil
		})
		return out, err
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	if parallel > 0 {
		eg.SetLimit(parallel)
	}
	for i := range inputs {
		eg.Go(func() error {
			emb, err := client.GenerateEmbedding(ectx, []byte(inputs[i]))
			if err != nil {
				return err
			}
			out[i] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
