package graph

import (
	"github.com/scilab-ai/scilab/backend/pkg/ai"
)

const (
	DefaultParallelAiRequests  = 2
	DefaultMaxTripletsPerChunk = 8
)

// GraphClient turns text chunks into knowledge graph triplets.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	aiClient            ai.GraphAIClient
	parallelAiRequests  int
	maxTripletsPerChunk int
	strictSchema        bool
	onChunkFailure      func()
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// ParallelAiRequests bounds how many chunks are extracted concurrently.
// MaxTripletsPerChunk is passed to the extraction prompt.
// StrictSchema drops records outside the closed entity/relation vocabulary.
// OnChunkFailure, if set, is called for every chunk whose model call failed.
type NewGraphClientParams struct {
	AIClient            ai.GraphAIClient
	ParallelAiRequests  int
	MaxTripletsPerChunk int
	StrictSchema        bool
	OnChunkFailure      func()
}

// NewGraphClient creates and returns a new GraphClient.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:            aiClient,
//		ParallelAiRequests:  2,
//		MaxTripletsPerChunk: 8,
//	})
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	parallel := params.ParallelAiRequests
	if parallel <= 0 {
		parallel = DefaultParallelAiRequests
	}
	maxTriplets := params.MaxTripletsPerChunk
	if maxTriplets <= 0 {
		maxTriplets = DefaultMaxTripletsPerChunk
	}

	return &GraphClient{
		aiClient:            params.AIClient,
		parallelAiRequests:  parallel,
		maxTripletsPerChunk: maxTriplets,
		strictSchema:        params.StrictSchema,
		onChunkFailure:      params.OnChunkFailure,
	}
}
