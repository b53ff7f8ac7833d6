package ollama

import (
	"net/http"
	"net/url"
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements the ai.GraphAIClient interface using Ollama as the backend.
type GraphOllamaClient struct {
	ai.MetricsRecorder

	chatModel      string
	embeddingModel string
	embeddingDim   int
	temperature    float64
	maxTokens      int
	timeout        time.Duration

	reqLock *semaphore.Weighted

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int

	BaseURL string
	ApiKey  string

	Temperature           float64
	MaxTokens             int
	Timeout               time.Duration
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient creates a new Ollama-based AI client.
// An empty BaseURL falls back to the ollama default (OLLAMA_HOST).
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	var cli *api.Client
	if u == nil {
		cli, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	} else {
		headers := map[string]string{}
		if params.ApiKey != "" {
			headers["Authorization"] = "Bearer " + params.ApiKey
		}
		cli = api.NewClient(u, &http.Client{
			Transport: &headerTransport{headers: headers, rt: http.DefaultTransport},
		})
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GraphOllamaClient{
		chatModel:      params.ChatModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   params.EmbeddingDim,
		temperature:    params.Temperature,
		maxTokens:      params.MaxTokens,
		timeout:        timeout,

		reqLock: semaphore.NewWeighted(maxConcurrent),

		Client: cli,
	}, nil
}

var _ ai.GraphAIClient = (*GraphOllamaClient)(nil)
