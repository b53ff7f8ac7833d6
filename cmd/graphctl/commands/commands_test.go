package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scilab-ai/scilab/backend/internal/bootstrap"
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/ai/aitest"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/loader"
	"github.com/scilab-ai/scilab/backend/pkg/store/memory"
)

const extraction = `{"entities": [
  {"entity_name": "Graph Paper", "entity_type": "Paper", "entity_description": "a paper"},
  {"entity_name": "Louvain", "entity_type": "Method", "entity_description": "community detection"}
], "relationships": [
  {"source_entity": "Graph Paper", "target_entity": "Louvain", "relation": "uses", "relationship_description": "clusters with louvain"}
]}`

type textLoader struct{}

func (textLoader) GetFileText(ctx context.Context, file loader.GraphFile) ([]byte, error) {
	return []byte("Graph Paper uses Louvain."), nil
}

func oneChunk(text, documentID string) ([]common.Chunk, error) {
	return []common.Chunk{{ID: documentID + "-0", DocumentID: documentID, Text: text}}, nil
}

// useFakeComponents points every command at one shared in-memory graph.
func useFakeComponents(t *testing.T) {
	t.Helper()

	storage := memory.NewGraphMemoryStorage()
	client := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return extraction, nil
		},
		ChatFunc: func(ctx context.Context, messages []ai.ChatMessage) (string, error) {
			if messages[0].Message == ai.AggregateAnswersPrompt {
				return "assistant: Louvain finds communities.", nil
			}
			return "assistant: Graph Paper relies on Louvain.", nil
		},
	}
	uploads := t.TempDir()

	prev := build
	build = func(ctx context.Context, cfg config.Config) (*bootstrap.Components, error) {
		cfg.Server.UploadDir = uploads
		return bootstrap.Build(ctx, bootstrap.Params{
			Config:   cfg,
			AIClient: client,
			Storage:  storage,
			Files:    textLoader{},
			Chunker:  oneChunk,
		})
	}
	t.Cleanup(func() { build = prev })
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestIngestAskCommunities(t *testing.T) {
	useFakeComponents(t)

	pdf := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4 fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := run(t, "ingest", "--id", "paper", pdf)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.HasPrefix(out, "paper\t") || !strings.Contains(out, "chunks=1 triplets=1") {
		t.Errorf("ingest output = %q", out)
	}

	out, trace, err := run(t, "ask", "--trace", "What", "is", "Louvain?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "Louvain finds communities." {
		t.Errorf("ask output = %q", out)
	}
	if !strings.Contains(trace, "Louvain") {
		t.Errorf("trace = %q", trace)
	}

	out, _, err = run(t, "communities", "--rebuild")
	if err != nil {
		t.Fatalf("communities: %v", err)
	}
	if !strings.Contains(out, "## Community 0") || !strings.Contains(out, "Graph Paper relies on Louvain.") {
		t.Errorf("communities output = %q", out)
	}
}

func TestCommunitiesEmpty(t *testing.T) {
	useFakeComponents(t)

	out, _, err := run(t, "communities", "--rebuild=false")
	if err != nil {
		t.Fatalf("communities: %v", err)
	}
	if !strings.Contains(out, "No communities") {
		t.Errorf("output = %q", out)
	}
}

func TestIngestIDWithManyFiles(t *testing.T) {
	useFakeComponents(t)

	if _, _, err := run(t, "ingest", "--id", "x", "a.pdf", "b.pdf"); err == nil {
		t.Fatal("expected error for --id with two files")
	}
	ingestDocumentID = ""
}
