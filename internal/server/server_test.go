package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/ingest"
	"github.com/scilab-ai/scilab/backend/internal/metrics"
	mid "github.com/scilab-ai/scilab/backend/internal/server/middleware"
	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/ai/aitest"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	"github.com/scilab-ai/scilab/backend/pkg/store/memory"
)

const extraction = `{"entities": [
  {"entity_name": "Graph Paper", "entity_type": "Paper", "entity_description": "the paper"},
  {"entity_name": "Louvain", "entity_type": "Method", "entity_description": "community detection"}
], "relationships": [
  {"source_entity": "Graph Paper", "target_entity": "Louvain", "relation": "uses", "relationship_description": "clusters with louvain"}
]}`

type textLoader struct{}

func (textLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	return []byte("Graph Paper uses Louvain.\n\nLouvain finds communities."), nil
}

type upperParser struct{}

func (upperParser) ParseText(ctx context.Context, content []byte) (string, error) {
	return strings.ToUpper(string(content)), nil
}

func paragraphChunker(text, documentID string) ([]common.Chunk, error) {
	var chunks []common.Chunk
	for i, p := range strings.Split(text, "\n\n") {
		chunks = append(chunks, common.Chunk{ID: documentID + string(rune('a'+i)), DocumentID: documentID, Index: i, Text: p})
	}
	return chunks, nil
}

func newTestServer(t *testing.T, apiKey string) (*mid.App, http.Handler) {
	t.Helper()

	client := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return extraction, nil
		},
		ChatFunc: func(ctx context.Context, messages []ai.ChatMessage) (string, error) {
			if messages[0].Message == ai.AggregateAnswersPrompt {
				return "assistant: Louvain finds communities.", nil
			}
			return "assistant: partial", nil
		},
		FormatFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"tags": ["Graphs", "graph", "Community Detection"]}`, nil
		},
	}

	components, err := bootstrap.Build(context.Background(), bootstrap.Params{
		Config:   config.Config{Server: config.Server{UploadDir: t.TempDir()}},
		AIClient: client,
		Storage:  memory.NewGraphMemoryStorage(),
		Files:    textLoader{},
		Chunker:  paragraphChunker,
	})
	if err != nil {
		t.Fatalf("bootstrap.Build() error = %v", err)
	}
	t.Cleanup(components.Close)

	app := &mid.App{
		Components: components,
		Parser:     upperParser{},
		Metrics:    metrics.New(),
		APIKey:     apiKey,
	}
	return app, New(app, "")
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, h http.Handler, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not json: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, "")
	rec := doJSON(t, h, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["service"] != "scilab-ai" {
		t.Errorf("body = %v", body)
	}
}

func TestUploadIngestChat(t *testing.T) {
	app, h := newTestServer(t, "")
	content := []byte("%PDF-1.4 graph paper")

	rec := doUpload(t, h, "/pdf", "notes.txt", content)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-pdf upload status = %d", rec.Code)
	}

	rec = doUpload(t, h, "/pdf", "Paper.PDF", content)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	up := decode(t, rec)
	id := ingest.DocumentID(content)
	if up["documentId"] != id || up["status"] != "uploaded" || up["sizeBytes"] != float64(len(content)) {
		t.Errorf("upload = %v", up)
	}

	rec = doJSON(t, h, http.MethodGet, "/status", nil, nil)
	status := decode(t, rec)
	if status["status"] != "ready" || status["pending_documents"] != float64(1) || status["has_data"] != false {
		t.Errorf("status before ingest = %v", status)
	}

	rec = doJSON(t, h, http.MethodPost, "/ingest", map[string]any{"documentId": id}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode(t, rec)
	if res["status"] != "success" || res["chunkCount"] != float64(2) || res["tripletCount"] != float64(1) || res["communityCount"] != float64(1) {
		t.Errorf("ingest = %v", res)
	}

	rec = doJSON(t, h, http.MethodPost, "/ingest", map[string]any{"documentId": id}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second ingest status = %d", rec.Code)
	}
	want := "Document '" + id + "' not found. Upload it first via /pdf endpoint."
	if got := decode(t, rec)["detail"]; got != want {
		t.Errorf("detail = %v, want %q", got, want)
	}

	rec = doJSON(t, h, http.MethodPost, "/chat", map[string]any{"message": "What is Louvain?", "trace": true}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	chat := decode(t, rec)
	if chat["message"] != "What is Louvain?" || chat["answer"] != "Louvain finds communities." {
		t.Errorf("chat = %v", chat)
	}
	if chat["trace"] == nil {
		t.Error("trace missing")
	}

	rec = doJSON(t, h, http.MethodGet, "/status", nil, nil)
	status = decode(t, rec)
	if status["triplet_count"] != float64(1) || status["community_count"] != float64(1) || status["has_data"] != true {
		t.Errorf("status after ingest = %v", status)
	}
	if !app.Store.HasCommunities() {
		t.Error("store has no communities")
	}
}

func TestChat(t *testing.T) {
	_, h := newTestServer(t, "")

	rec := doJSON(t, h, http.MethodPost, "/chat", map[string]any{"message": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/chat", map[string]any{"message": "anything?"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec)["answer"]; got != ai.NoDataAnswer {
		t.Errorf("answer = %v, want fallback", got)
	}
}

func TestPapers(t *testing.T) {
	_, h := newTestServer(t, "")

	rec := doUpload(t, h, "/papers/parse", "a.pdf", []byte("not a pdf"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("parse non-pdf status = %d", rec.Code)
	}
	rec = doUpload(t, h, "/papers/parse", "a.pdf", []byte("%PDF-1.7 body"))
	if got := decode(t, rec)["parsedText"]; got != "%PDF-1.7 BODY" {
		t.Errorf("parsedText = %v", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/papers/auto-tag", map[string]any{"parsedText": "too short"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short auto-tag status = %d", rec.Code)
	}

	text := strings.Repeat("Community detection on citation graphs. ", 5)
	rec = doJSON(t, h, http.MethodPost, "/papers/auto-tag", map[string]any{
		"parsedText":   text,
		"existingTags": []string{"graphs"},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("auto-tag status = %d: %s", rec.Code, rec.Body.String())
	}
	tags, _ := decode(t, rec)["tags"].([]any)
	if len(tags) != 1 || tags[0] != "Community Detection" {
		t.Errorf("tags = %v", tags)
	}
}

func TestSystemDB(t *testing.T) {
	_, h := newTestServer(t, "")
	rec := doJSON(t, h, http.MethodGet, "/system/db", nil, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("system/db = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/system/info/version", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("system/info without database = %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	_, h := newTestServer(t, "secret")

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "secret"}, http.StatusUnauthorized},
		{"api key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodGet, "/status", nil, tt.header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := doJSON(t, h, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("health behind auth: %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/communities/rebuild", nil, map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("rebuild with api key = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, "")
	doJSON(t, h, http.MethodPost, "/chat", map[string]any{"message": "anything?"}, nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "scilab_chats_total") {
		t.Errorf("metrics output lacks chat counter:\n%s", rec.Body.String())
	}
}

