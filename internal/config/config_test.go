package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHUNK_SIZE", "CHUNK_OVERLAP", "MAX_TRIPLETS_PER_CHUNK", "SIMILARITY_TOP_K",
		"MAX_CLUSTER_SIZE", "GRAPH_STORE", "RABBITMQ_HOST", "AWS_BUCKET", "PORT", "AI_TIMEOUT_SEC",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Graph.ChunkSize != 1024 || cfg.Graph.ChunkOverlap != 50 {
		t.Errorf("chunking = %d/%d, want 1024/50", cfg.Graph.ChunkSize, cfg.Graph.ChunkOverlap)
	}
	if cfg.Graph.MaxTripletsPerChunk != 8 {
		t.Errorf("MaxTripletsPerChunk = %d, want 8", cfg.Graph.MaxTripletsPerChunk)
	}
	if cfg.Graph.SimilarityTopK != 20 {
		t.Errorf("SimilarityTopK = %d, want 20", cfg.Graph.SimilarityTopK)
	}
	if cfg.Graph.MaxClusterSize != 5 {
		t.Errorf("MaxClusterSize = %d, want 5", cfg.Graph.MaxClusterSize)
	}
	if cfg.Graph.Store != "pgx" {
		t.Errorf("Store = %q, want pgx", cfg.Graph.Store)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.RabbitMQ.Enabled() || cfg.S3.Enabled() {
		t.Error("queue and object storage should be off without a host and bucket")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("SIMILARITY_TOP_K", "7")
	t.Setenv("GRAPH_STORE", "memory")
	t.Setenv("EXTRACT_STRICT_SCHEMA", "true")
	t.Setenv("AI_TIMEOUT_SEC", "90")
	t.Setenv("RABBITMQ_HOST", "rabbit")
	t.Setenv("AWS_BUCKET", "papers")

	cfg := Load()

	if cfg.Graph.ChunkSize != 512 || cfg.Graph.SimilarityTopK != 7 {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	if cfg.Graph.Store != "memory" || !cfg.Graph.StrictSchema {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	if cfg.AI.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.AI.Timeout)
	}
	if !cfg.RabbitMQ.Enabled() || !cfg.S3.Enabled() {
		t.Error("queue and object storage should be on")
	}
}
