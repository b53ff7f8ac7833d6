package store

import (
	"context"

	"github.com/scilab-ai/scilab/backend/pkg/common"
)

// GraphStorage persists extracted triplets and serves similarity retrieval.
//
// SaveChunks upserts entities by exact name and relations by
// (source, label, target); later writes replace descriptions and properties.
// Retrieve returns at most topK nodes whose Text holds one relation per line
// in the form "source -> label -> target".
type GraphStorage interface {
	SaveChunks(ctx context.Context, chunks []common.Chunk) error
	GetTriplets(ctx context.Context) ([]common.Triplet, error)
	Retrieve(ctx context.Context, query string, topK int) ([]common.RetrievedNode, error)
	CountTriplets(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close()
}
