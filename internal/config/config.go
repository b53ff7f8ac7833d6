// Package config collects the service settings from the environment.
package config

import (
	"time"

	"github.com/scilab-ai/scilab/backend/internal/util"
)

type AI struct {
	Adapter        string
	ChatURL        string
	ChatKey        string
	ChatModel      string
	EmbedURL       string
	EmbedKey       string
	EmbedModel     string
	EmbedDim       int
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	ParallelReq    int
	MaxConcurrency int
}

type Graph struct {
	Store               string
	DatabaseURL         string
	MigrationsEnabled   bool
	ChunkSize           int
	ChunkOverlap        int
	MaxTripletsPerChunk int
	SimilarityTopK      int
	MaxClusterSize      int
	StrictSchema        bool
}

type RabbitMQ struct {
	User     string
	Password string
	Host     string
	Port     string
}

// Enabled reports whether a broker host is configured.
func (r RabbitMQ) Enabled() bool {
	return r.Host != ""
}

type S3 struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

func (s S3) Enabled() bool {
	return s.Bucket != ""
}

type Server struct {
	Port      string
	APIKey    string
	AuthURL   string
	BodyLimit string
	UploadDir string
}

type Config struct {
	Debug             bool
	SystemDatabaseURL string

	AI       AI
	Graph    Graph
	RabbitMQ RabbitMQ
	S3       S3
	Server   Server
}

// Load reads the configuration after loading a .env file if present.
func Load() Config {
	util.LoadEnv()

	return Config{
		Debug:             util.GetEnvBool("DEBUG", false),
		SystemDatabaseURL: util.GetEnvString("SYSTEM_DATABASE_URL", ""),

		AI: AI{
			Adapter:        util.GetEnvString("AI_ADAPTER", "openai"),
			ChatURL:        util.GetEnvString("AI_CHAT_URL", "https://openrouter.ai/api/v1"),
			ChatKey:        util.GetEnvString("AI_CHAT_KEY", ""),
			ChatModel:      util.GetEnvString("AI_CHAT_MODEL", "openai/gpt-4o-mini"),
			EmbedURL:       util.GetEnvString("AI_EMBED_URL", ""),
			EmbedKey:       util.GetEnvString("AI_EMBED_KEY", ""),
			EmbedModel:     util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),
			EmbedDim:       util.GetEnvInt("AI_EMBED_DIM", 0),
			Temperature:    util.GetEnvNumeric("AI_TEMPERATURE", 0.1),
			MaxTokens:      util.GetEnvInt("AI_MAX_TOKENS", 512),
			Timeout:        util.GetEnvDuration("AI_TIMEOUT_SEC", 60*time.Second),
			ParallelReq:    util.GetEnvInt("AI_PARALLEL_REQ", 2),
			MaxConcurrency: util.GetEnvInt("AI_MAX_CONCURRENCY", 15),
		},

		Graph: Graph{
			Store:               util.GetEnvString("GRAPH_STORE", "pgx"),
			DatabaseURL:         util.GetEnvString("DATABASE_URL", ""),
			MigrationsEnabled:   util.GetEnvBool("GRAPH_MIGRATE", true),
			ChunkSize:           util.GetEnvInt("CHUNK_SIZE", 1024),
			ChunkOverlap:        util.GetEnvInt("CHUNK_OVERLAP", 50),
			MaxTripletsPerChunk: util.GetEnvInt("MAX_TRIPLETS_PER_CHUNK", 8),
			SimilarityTopK:      util.GetEnvInt("SIMILARITY_TOP_K", 20),
			MaxClusterSize:      util.GetEnvInt("MAX_CLUSTER_SIZE", 5),
			StrictSchema:        util.GetEnvBool("EXTRACT_STRICT_SCHEMA", false),
		},

		RabbitMQ: RabbitMQ{
			User:     util.GetEnvString("RABBITMQ_USER", "guest"),
			Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
			Host:     util.GetEnvString("RABBITMQ_HOST", ""),
			Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
		},

		S3: S3{
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnvString("AWS_ENDPOINT", ""),
			AccessKey: util.GetEnvString("AWS_ACCESS_KEY", ""),
			SecretKey: util.GetEnvString("AWS_SECRET_KEY", ""),
			Bucket:    util.GetEnvString("AWS_BUCKET", ""),
		},

		Server: Server{
			Port:      util.GetEnvString("PORT", "8080"),
			APIKey:    util.GetEnvString("API_KEY", ""),
			AuthURL:   util.GetEnvString("AUTH_URL", ""),
			BodyLimit: util.GetEnvString("BODY_LIMIT", "100M"),
			UploadDir: util.GetEnvString("UPLOAD_DIR", ""),
		},
	}
}
