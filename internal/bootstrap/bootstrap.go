// Package bootstrap wires the graph components from the service config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/ingest"
	"github.com/scilab-ai/scilab/backend/internal/metrics"
	"github.com/scilab-ai/scilab/backend/pkg/ai"
	oai "github.com/scilab-ai/scilab/backend/pkg/ai/ollama"
	gai "github.com/scilab-ai/scilab/backend/pkg/ai/openai"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/community"
	"github.com/scilab-ai/scilab/backend/pkg/graph"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/query"
	"github.com/scilab-ai/scilab/backend/pkg/store"
	"github.com/scilab-ai/scilab/backend/pkg/store/memory"
	pgxstore "github.com/scilab-ai/scilab/backend/pkg/store/pgx"
	"github.com/scilab-ai/scilab/backend/pkg/tagger"
)

// Components are the long lived graph services shared by the binaries.
type Components struct {
	AIClient ai.GraphAIClient
	Store    *community.Store
	Engine   *query.Engine
	Tagger   *tagger.AutoTagger
	Pipeline *ingest.Pipeline
	Chunker  ingest.Chunker
}

// Close releases the graph storage and pending uploads.
func (c *Components) Close() {
	c.Pipeline.Registry().Close()
	c.Store.Close()
}

type Params struct {
	Config config.Config
	// Metrics is optional.
	Metrics *metrics.Metrics
	// AIClient overrides the client built from Config.AI.
	AIClient ai.GraphAIClient
	// Storage overrides the store selected by Config.Graph.Store.
	Storage store.GraphStorage
	// Files overrides the pipeline's document loader.
	Files   loader.GraphFileLoader
	Chunker ingest.Chunker
}

func Build(ctx context.Context, params Params) (*Components, error) {
	cfg := params.Config

	aiClient := params.AIClient
	if aiClient == nil {
		var err error
		aiClient, err = NewAIClient(cfg.AI)
		if err != nil {
			return nil, err
		}
	}
	if m := params.Metrics; m != nil {
		if r, ok := aiClient.(interface{ OnRecord(func(ai.ModelMetrics)) }); ok {
			r.OnRecord(m.ObserveLLM)
		}
	}

	storage := params.Storage
	if storage == nil {
		var err error
		storage, err = NewGraphStorage(ctx, cfg.Graph, cfg.AI, aiClient)
		if err != nil {
			return nil, err
		}
	}

	var (
		onBuild   func(community.Stats, time.Duration)
		onFailure func()
		onIngest  func(ingest.Result, time.Duration)
	)
	if m := params.Metrics; m != nil {
		onBuild = m.CommunitiesBuilt
		onFailure = m.ChunkFailed
		onIngest = func(_ ingest.Result, took time.Duration) { m.Ingested(took) }
	}

	st := community.NewStore(community.NewStoreParams{
		Storage:        storage,
		AIClient:       aiClient,
		MaxClusterSize: cfg.Graph.MaxClusterSize,
		OnBuild:        onBuild,
	})

	chunker := params.Chunker
	if chunker == nil {
		cp := graph.ChunkParams{
			ChunkSize:    cfg.Graph.ChunkSize,
			ChunkOverlap: cfg.Graph.ChunkOverlap,
		}
		chunker = func(text, documentID string) ([]common.Chunk, error) {
			return graph.SplitText(text, documentID, cp)
		}
	}

	pipeline := ingest.NewPipeline(ingest.NewPipelineParams{
		Registry: ingest.NewRegistry(cfg.Server.UploadDir),
		Files:    params.Files,
		GraphClient: graph.NewGraphClient(graph.NewGraphClientParams{
			AIClient:            aiClient,
			ParallelAiRequests:  cfg.AI.ParallelReq,
			MaxTripletsPerChunk: cfg.Graph.MaxTripletsPerChunk,
			StrictSchema:        cfg.Graph.StrictSchema,
			OnChunkFailure:      onFailure,
		}),
		Store:    st,
		Chunker:  chunker,
		OnIngest: onIngest,
	})

	return &Components{
		AIClient: aiClient,
		Store:    st,
		Engine: query.NewEngine(query.NewEngineParams{
			Index:    st,
			AIClient: aiClient,
			TopK:     cfg.Graph.SimilarityTopK,
		}),
		Tagger: tagger.NewAutoTagger(tagger.NewAutoTaggerParams{
			AIClient: aiClient,
			Workers:  cfg.AI.ParallelReq,
		}),
		Pipeline: pipeline,
		Chunker:  chunker,
	}, nil
}

// NewAIClient builds the adapter named by cfg.Adapter.
func NewAIClient(cfg config.AI) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			Temperature:           cfg.Temperature,
			MaxTokens:             cfg.MaxTokens,
			Timeout:               cfg.Timeout,
			MaxConcurrentRequests: int64(cfg.MaxConcurrency),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return client, nil
	case "openai", "":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:      cfg.ChatModel,
			EmbeddingModel: cfg.EmbedModel,
			EmbeddingDim:   cfg.EmbedDim,

			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,
			EmbeddingURL: cfg.EmbedURL,
			EmbeddingKey: cfg.EmbedKey,

			Temperature:           cfg.Temperature,
			MaxTokens:             cfg.MaxTokens,
			Timeout:               cfg.Timeout,
			MaxConcurrentRequests: int64(cfg.MaxConcurrency),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", cfg.Adapter)
	}
}

// NewGraphStorage opens the store named by cfg.Store, migrating the
// postgres schema first when enabled.
func NewGraphStorage(ctx context.Context, cfg config.Graph, aiCfg config.AI, aiClient ai.GraphAIClient) (store.GraphStorage, error) {
	switch cfg.Store {
	case "memory":
		logger.Warn("[Store] Using in-memory graph store; data is lost on restart")
		return memory.NewGraphMemoryStorage(), nil
	case "pgx", "":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the pgx graph store")
		}
		if cfg.MigrationsEnabled {
			if err := pgxstore.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		var opts []pgxstore.GraphDBStorageOption
		if aiCfg.EmbedModel == "" {
			opts = append(opts, pgxstore.WithoutEmbeddings())
		}
		opts = append(opts, pgxstore.WithEmbeddingParallelism(aiCfg.ParallelReq))
		s, err := pgxstore.NewGraphDBStorage(ctx, cfg.DatabaseURL, aiClient, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to graph database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown GRAPH_STORE %q", cfg.Store)
	}
}
