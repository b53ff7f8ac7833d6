// Package ingest turns uploaded PDFs into knowledge graph triplets and
// refreshes the community summaries afterwards.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/community"
	"github.com/scilab-ai/scilab/backend/pkg/graph"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	loaderio "github.com/scilab-ai/scilab/backend/pkg/loader/io"
	"github.com/scilab-ai/scilab/backend/pkg/loader/pdf"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
)

// Options are the per-document ingestion switches.
type Options struct {
	MaxTripletsPerChunk int
	// PictureDescription and FormulaEnrichment are accepted for API
	// compatibility; pdftotext has no such stages.
	PictureDescription bool
	FormulaEnrichment  bool
}

// Result summarizes a finished ingestion. Triplet and community counts are
// graph-wide.
type Result struct {
	DocumentID     string
	ChunkCount     int
	TripletCount   int
	CommunityCount int
}

// Chunker splits document text into chunks.
type Chunker func(text, documentID string) ([]common.Chunk, error)

// Pipeline runs parse, chunk, extract, save and community build.
type Pipeline struct {
	registry *Registry
	files    loader.GraphFileLoader
	extract  *graph.GraphClient
	store    *community.Store
	chunker  Chunker
	onIngest func(Result, time.Duration)
}

type NewPipelineParams struct {
	Registry *Registry
	// Files reads document text; defaults to pdftotext over the local file.
	Files       loader.GraphFileLoader
	GraphClient *graph.GraphClient
	Store       *community.Store
	ChunkParams graph.ChunkParams
	// Chunker overrides ChunkParams when set.
	Chunker  Chunker
	OnIngest func(Result, time.Duration)
}

func NewPipeline(params NewPipelineParams) *Pipeline {
	if params.Registry == nil {
		params.Registry = NewRegistry("")
	}
	if params.Files == nil {
		params.Files = pdf.NewPDFGraphLoader(loaderio.NewIOGraphFileLoader())
	}
	if params.Chunker == nil {
		cp := params.ChunkParams
		params.Chunker = func(text, documentID string) ([]common.Chunk, error) {
			return graph.SplitText(text, documentID, cp)
		}
	}
	return &Pipeline{
		registry: params.Registry,
		files:    params.Files,
		extract:  params.GraphClient,
		store:    params.Store,
		chunker:  params.Chunker,
		onIngest: params.OnIngest,
	}
}

func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Ingest processes the uploaded document id and drops its upload on success.
func (p *Pipeline) Ingest(ctx context.Context, id string, opts Options) (Result, error) {
	path, err := p.registry.Path(id)
	if err != nil {
		return Result{}, err
	}

	file := loader.NewGraphDocumentFile(loader.NewGraphFileParams{
		ID:       id,
		FilePath: path,
		Loader:   p.files,
	})
	res, err := p.Process(ctx, file, opts)
	if err != nil {
		return Result{}, err
	}

	p.registry.Remove(id, path)
	if f, ok := p.files.(interface{ Forget(loader.GraphFile) }); ok {
		f.Forget(file)
	}
	return res, nil
}

// Process runs the pipeline for a file from any loader.
func (p *Pipeline) Process(ctx context.Context, file loader.GraphFile, opts Options) (Result, error) {
	start := time.Now()
	id := file.ID

	logger.Info("[Ingest] Processing document", "document_id", id,
		"picture_description", opts.PictureDescription, "formula_enrichment", opts.FormulaEnrichment)

	text, err := file.GetText(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse document: %w", err)
	}

	chunks, err := p.chunker(string(text), id)
	if err != nil {
		return Result{}, fmt.Errorf("failed to chunk document: %w", err)
	}
	logger.Debug("[Ingest] Split document", "document_id", id, "chunks", len(chunks))

	var extractOpts []graph.ExtractOption
	if opts.MaxTripletsPerChunk > 0 {
		extractOpts = append(extractOpts, graph.WithMaxTriplets(opts.MaxTripletsPerChunk))
	}
	chunks, err = p.extract.Extract(ctx, chunks, extractOpts...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract triplets: %w", err)
	}

	if err := p.store.SaveChunks(ctx, chunks); err != nil {
		return Result{}, fmt.Errorf("failed to save chunks: %w", err)
	}
	if err := p.store.BuildCommunities(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to build communities: %w", err)
	}

	triplets, err := p.store.CountTriplets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count triplets: %w", err)
	}

	res := Result{
		DocumentID:     id,
		ChunkCount:     len(chunks),
		TripletCount:   triplets,
		CommunityCount: p.store.Stats().Communities,
	}
	took := time.Since(start)
	logger.Info("[Ingest] Document ingested", "document_id", id,
		"chunks", res.ChunkCount, "triplets", res.TripletCount, "communities", res.CommunityCount, "took", took)
	if p.onIngest != nil {
		p.onIngest(res, took)
	}
	return res, nil
}
