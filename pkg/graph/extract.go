package graph

import (
	"context"
	"fmt"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type extractOptions struct {
	maxTriplets int
}

// ExtractOption overrides GraphClient settings for a single Extract call.
type ExtractOption func(*extractOptions)

// WithMaxTriplets overrides the per-chunk triplet budget. Values <= 0 are ignored.
func WithMaxTriplets(n int) ExtractOption {
	return func(o *extractOptions) {
		if n > 0 {
			o.maxTriplets = n
		}
	}
}

// Extract runs triplet extraction over every chunk and returns the chunks
// with Entities and Relations filled in, in input order.
//
// A failed model call or unparseable output contributes nothing for that
// chunk and never fails the batch. Only context cancellation aborts Extract.
func (g *GraphClient) Extract(
	ctx context.Context,
	chunks []common.Chunk,
	opts ...ExtractOption,
) ([]common.Chunk, error) {
	options := extractOptions{maxTriplets: g.maxTripletsPerChunk}
	for _, o := range opts {
		o(&options)
	}

	out := make([]common.Chunk, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i := range chunks {
		if gCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			out[i] = g.extractChunk(gCtx, chunks[i], options.maxTriplets)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entityCount, relationCount := 0, 0
	for _, c := range out {
		entityCount += len(c.Entities)
		relationCount += len(c.Relations)
	}
	logger.Info("[Extract] Finished extraction", "chunks", len(out), "entities", entityCount, "relations", relationCount)

	return out, nil
}

func (g *GraphClient) extractChunk(ctx context.Context, chunk common.Chunk, maxTriplets int) common.Chunk {
	prompt := fmt.Sprintf(ai.ExtractTripletsPrompt, maxTriplets, chunk.Text)

	var (
		entities  []ExtractedEntity
		relations []ExtractedRelation
	)
	res, err := g.aiClient.GenerateCompletion(ctx, prompt)
	if err != nil {
		logger.Error("[Extract] Model call failed", "chunk", chunk.ID, "err", err)
		if g.onChunkFailure != nil {
			g.onChunkFailure()
		}
	} else {
		entities, relations = ParseTriplets(res)
	}

	if g.strictSchema {
		var schemaErr error
		entities, relations, schemaErr = ValidateTriplets(entities, relations)
		if schemaErr != nil {
			logger.Warn("[Extract] Dropped records outside schema", "chunk", chunk.ID, "err", schemaErr)
		}
	}

	logger.Debug("[Extract] Chunk extracted", "chunk", chunk.ID, "entities", len(entities), "relations", len(relations))
	return attachTriplets(chunk, entities, relations)
}

// attachTriplets appends entities and relations to a copy of chunk. Each
// record carries a copy of the chunk metadata plus its own description.
func attachTriplets(chunk common.Chunk, entities []ExtractedEntity, relations []ExtractedRelation) common.Chunk {
	out := chunk
	out.Entities = append([]common.Entity(nil), chunk.Entities...)
	out.Relations = append([]common.Relation(nil), chunk.Relations...)

	for _, e := range entities {
		if e.EntityName == "" {
			continue
		}
		if e.EntityType == "" {
			logger.Warn("[Extract] Missing entity_type", "entity", e.EntityName)
		}
		props := common.CopyProperties(chunk.Metadata)
		props[common.PropEntityDescription] = e.EntityDescription
		out.Entities = append(out.Entities, common.Entity{
			Name:        e.EntityName,
			Type:        e.EntityType,
			Description: e.EntityDescription,
			Properties:  props,
		})
	}

	for _, r := range relations {
		if r.SourceEntity == "" || r.TargetEntity == "" {
			continue
		}
		props := common.CopyProperties(chunk.Metadata)
		props[common.PropRelationDescription] = r.RelationshipDescription
		out.Relations = append(out.Relations, common.Relation{
			Source:      r.SourceEntity,
			Target:      r.TargetEntity,
			Label:       r.Relation,
			Description: r.RelationshipDescription,
			Properties:  props,
		})
	}

	return out
}
