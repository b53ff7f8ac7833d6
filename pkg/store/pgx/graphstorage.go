package pgx

import (
	"context"
	"fmt"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Entity
// embeddings live in a pgvector column and drive similarity retrieval.
type GraphDBStorage struct {
	conn          pgxIConn
	closer        func()
	aiClient      ai.GraphAIClient
	embedParallel int
}

var _ store.GraphStorage = (*GraphDBStorage)(nil)

type GraphDBStorageOption func(*GraphDBStorage)

// WithoutEmbeddings stores no vectors and retrieves by keyword match instead.
func WithoutEmbeddings() GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.aiClient = nil
	}
}

// WithEmbeddingParallelism bounds concurrent embedding requests for clients
// without a batch endpoint.
func WithEmbeddingParallelism(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.embedParallel = n
	}
}

// NewPool opens a pgx pool with pgvector types registered on every connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// NewGraphDBStorage connects to databaseURL and returns a storage that owns
// the pool. The AI client is used for generating embeddings.
func NewGraphDBStorage(
	ctx context.Context,
	databaseURL string,
	aiClient ai.GraphAIClient,
	opts ...GraphDBStorageOption,
) (*GraphDBStorage, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s, err := NewGraphDBStorageWithConnection(ctx, pool, aiClient, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.closer = pool.Close
	return s, nil
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an existing
// database connection. The caller keeps ownership of conn.
func NewGraphDBStorageWithConnection(
	ctx context.Context,
	conn pgxIConn,
	aiClient ai.GraphAIClient,
	opts ...GraphDBStorageOption,
) (*GraphDBStorage, error) {
	s := &GraphDBStorage{
		conn:          conn,
		aiClient:      aiClient,
		embedParallel: 4,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

func (s *GraphDBStorage) Ping(ctx context.Context) error {
	var one int
	return s.conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (s *GraphDBStorage) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func (s *GraphDBStorage) CountTriplets(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRow(ctx, "SELECT count(*) FROM graph_relations").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
