package openai

import (
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient implements ai.GraphAIClient against any OpenAI compatible
// endpoint, OpenRouter included. Chat and embeddings may live on different
// hosts and use separate keys.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	ai.MetricsRecorder

	chatModel      string
	embeddingModel string
	embeddingDim   int
	temperature    float64
	maxTokens      int
	timeout        time.Duration

	reqLock *semaphore.Weighted

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// ChatURL and ChatKey configure the chat/completion API endpoint.
// EmbeddingURL and EmbeddingKey configure the embedding API endpoint and
// default to the chat endpoint when empty.
type NewGraphOpenAIClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	Temperature           float64
	MaxTokens             int
	Timeout               time.Duration
	MaxConcurrentRequests int64
}

// NewGraphOpenAIClient creates a client for the configured endpoints.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		ChatModel: "openai/gpt-4o-mini",
//		ChatURL:   "https://openrouter.ai/api/v1",
//		ChatKey:   os.Getenv("AI_CHAT_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	embedURL, embedKey := params.EmbeddingURL, params.EmbeddingKey
	if embedKey == "" {
		embedURL, embedKey = params.ChatURL, params.ChatKey
	}
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GraphOpenAIClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   params.EmbeddingDim,
		temperature:    params.Temperature,
		maxTokens:      params.MaxTokens,
		timeout:        timeout,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(embedURL, embedKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

var _ ai.GraphAIClient = (*GraphOpenAIClient)(nil)
