package pgx

import (
	"context"
	"fmt"

	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const upsertChunkSQL = `
INSERT INTO graph_chunks (id, document_id, chunk_index, text, metadata)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, metadata = EXCLUDED.metadata`

// bare endpoint rows never overwrite a described entity
const upsertEntitySQL = `
INSERT INTO graph_entities (name, type, description, properties, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (name) DO UPDATE SET
    type        = CASE WHEN EXCLUDED.type <> '' THEN EXCLUDED.type ELSE graph_entities.type END,
    description = CASE WHEN EXCLUDED.description <> '' OR EXCLUDED.type <> '' THEN EXCLUDED.description ELSE graph_entities.description END,
    properties  = CASE WHEN EXCLUDED.properties <> '{}'::jsonb THEN EXCLUDED.properties ELSE graph_entities.properties END,
    embedding   = COALESCE(EXCLUDED.embedding, graph_entities.embedding),
    updated_at  = now()`

const upsertRelationSQL = `
INSERT INTO graph_relations (source, target, label, description, properties, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (source, label, target) DO UPDATE SET
    description = EXCLUDED.description,
    properties  = EXCLUDED.properties,
    updated_at  = now()`

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// SaveChunks writes chunks, entities and relations in one transaction.
// Embeddings are generated before the transaction opens.
func (s *GraphDBStorage) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	delta := store.CollectGraph(chunks)

	var embeddings [][]float32
	if s.aiClient != nil {
		var inputs []string
		for _, e := range delta.Entities {
			if e.Type == "" && e.Description == "" {
				inputs = append(inputs, "")
				continue
			}
			inputs = append(inputs, store.EntityEmbeddingText(e))
		}
		var err error
		embeddings, err = store.GenerateEmbeddings(ctx, s.aiClient, inputs, s.embedParallel)
		if err != nil {
			return fmt.Errorf("failed to embed entities: %w", err)
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgxv5.Batch{}
	for _, c := range chunks {
		batch.Queue(upsertChunkSQL, c.ID, c.DocumentID, c.Index, c.Text, nonNil(c.Metadata))
	}
	for i, e := range delta.Entities {
		var vec *pgvector.Vector
		if embeddings != nil && (e.Type != "" || e.Description != "") {
			v := pgvector.NewVector(embeddings[i])
			vec = &v
		}
		batch.Queue(upsertEntitySQL, e.Name, e.Type, e.Description, nonNil(e.Properties), vec)
	}
	for _, r := range delta.Relations {
		batch.Queue(upsertRelationSQL, r.Source, r.Target, r.Label, r.EdgeDescription(), nonNil(r.Properties))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write graph batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Debug("[Store] Saved chunks", "chunks", len(chunks), "entities", len(delta.Entities), "relations", len(delta.Relations))
	return nil
}
