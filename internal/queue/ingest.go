package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scilab-ai/scilab/backend/internal/ingest"
	"github.com/scilab-ai/scilab/backend/internal/util"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const publishAttempts = 3

// IngestJobMsg asks a worker to ingest a PDF stored under ObjectKey.
type IngestJobMsg struct {
	CorrelationID       string `json:"correlation_id"`
	DocumentID          string `json:"document_id"`
	ObjectKey           string `json:"object_key"`
	Filename            string `json:"filename"`
	MaxTripletsPerChunk int    `json:"max_triplets_per_chunk,omitempty"`
	PictureDescription  bool   `json:"picture_description,omitempty"`
	FormulaEnrichment   bool   `json:"formula_enrichment,omitempty"`
}

// GraphUpdatedMsg is published on TopicGraphUpdated after an ingest.
type GraphUpdatedMsg struct {
	CorrelationID  string `json:"correlation_id"`
	DocumentID     string `json:"document_id"`
	ChunkCount     int    `json:"chunk_count"`
	TripletCount   int    `json:"triplet_count"`
	CommunityCount int    `json:"community_count"`
}

// Options converts the job switches into pipeline options.
func (m IngestJobMsg) Options() ingest.Options {
	return ingest.Options{
		MaxTripletsPerChunk: m.MaxTripletsPerChunk,
		PictureDescription:  m.PictureDescription,
		FormulaEnrichment:   m.FormulaEnrichment,
	}
}

// PublishIngestJob enqueues msg on the ingest queue, assigning a
// correlation id when missing.
func PublishIngestJob(ch Channel, msg IngestJobMsg) (IngestJobMsg, error) {
	if msg.CorrelationID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return msg, err
		}
		msg.CorrelationID = id
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return msg, err
	}
	if err := PublishFIFO(ch, IngestQueue, data); err != nil {
		return msg, fmt.Errorf("failed to publish ingest job: %w", err)
	}
	return msg, nil
}

// IngestWorker runs queued ingest jobs through the pipeline.
type IngestWorker struct {
	Pipeline *ingest.Pipeline
	// Files reads the stored object; usually pdf text over S3.
	Files   loader.GraphFileLoader
	Channel Channel
	// Cleanup, if set, removes the stored object after a successful ingest.
	Cleanup func(ctx context.Context, key string) error
	// Lock, if set, holds key across workers while fn runs.
	Lock func(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// IngestLockKey is the lease key guarding one document's ingest.
func IngestLockKey(documentID string) string {
	return "ingest:" + documentID
}

// ProcessIngestMessage handles one message body from the ingest queue.
func (w *IngestWorker) ProcessIngestMessage(ctx context.Context, body []byte) error {
	var msg IngestJobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("invalid ingest message: %w", err)
	}
	if msg.DocumentID == "" || msg.ObjectKey == "" {
		return errors.New("ingest message needs document_id and object_key")
	}

	logger.Info("[Queue] Ingest job", "correlation_id", msg.CorrelationID,
		"document_id", msg.DocumentID, "filename", msg.Filename)

	file := loader.NewGraphDocumentFile(loader.NewGraphFileParams{
		ID:       msg.DocumentID,
		FilePath: msg.ObjectKey,
		Loader:   w.Files,
	})
	var res ingest.Result
	run := func(ctx context.Context) error {
		var err error
		res, err = w.Pipeline.Process(ctx, file, msg.Options())
		return err
	}
	var err error
	if w.Lock != nil {
		err = w.Lock(ctx, IngestLockKey(msg.DocumentID), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return err
	}

	if f, ok := w.Files.(interface{ Forget(loader.GraphFile) }); ok {
		f.Forget(file)
	}
	if w.Cleanup != nil {
		if err := w.Cleanup(ctx, msg.ObjectKey); err != nil {
			logger.Warn("[Queue] Failed to remove stored document", "key", msg.ObjectKey, "err", err)
		}
	}

	data, err := json.Marshal(GraphUpdatedMsg{
		CorrelationID:  msg.CorrelationID,
		DocumentID:     res.DocumentID,
		ChunkCount:     res.ChunkCount,
		TripletCount:   res.TripletCount,
		CommunityCount: res.CommunityCount,
	})
	if err != nil {
		return err
	}
	err = util.RetryErrWithContext(ctx, publishAttempts, func(context.Context) error {
		return PublishTopic(w.Channel, TopicGraphUpdated, data)
	})
	if err != nil {
		// the graph is already written; a retry would only redo the work
		logger.Error("[Queue] Failed to publish graph update", "document_id", res.DocumentID, "err", err)
	}
	return nil
}
