package graph

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scilab-ai/scilab/backend/pkg/ai/aitest"
	"github.com/scilab-ai/scilab/backend/pkg/common"
)

func chunkResponse(name string) string {
	return aitest.MustJSON(map[string]any{
		"entities": []map[string]string{
			{"entity_name": name, "entity_type": "Concept", "entity_description": name + " description"},
			{"entity_name": "Paper", "entity_type": "Paper", "entity_description": "the paper"},
		},
		"relationships": []map[string]string{
			{"source_entity": "Paper", "target_entity": name, "relation": "mentions", "relationship_description": "mentions " + name},
		},
	})
}

func TestExtract_PreservesInputOrder(t *testing.T) {
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, "text: first"):
				time.Sleep(50 * time.Millisecond)
				return chunkResponse("First"), nil
			case strings.Contains(prompt, "text: second"):
				return chunkResponse("Second"), nil
			default:
				return chunkResponse("Third"), nil
			}
		},
	}
	client := NewGraphClient(NewGraphClientParams{AIClient: fake, ParallelAiRequests: 3})

	chunks := []common.Chunk{
		{ID: "c1", Text: "first", Metadata: map[string]string{"chunk_id": "c1"}},
		{ID: "c2", Text: "second", Metadata: map[string]string{"chunk_id": "c2"}},
		{ID: "c3", Text: "third", Metadata: map[string]string{"chunk_id": "c3"}},
	}
	out, err := client.Extract(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d chunks, want 3", len(out))
	}
	for i, want := range []string{"First", "Second", "Third"} {
		if out[i].ID != chunks[i].ID {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, chunks[i].ID)
		}
		if len(out[i].Entities) != 2 || out[i].Entities[0].Name != want {
			t.Errorf("out[%d].Entities = %+v, want first entity %q", i, out[i].Entities, want)
		}
	}
}

func TestExtract_AttachesMetadataAndDescriptions(t *testing.T) {
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return "```json\n" + chunkResponse("Self Attention") + "\n```", nil
		},
	}
	client := NewGraphClient(NewGraphClientParams{AIClient: fake})

	meta := map[string]string{"document_id": "doc"}
	out, err := client.Extract(context.Background(), []common.Chunk{{ID: "c1", Text: "t", Metadata: meta}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	e := out[0].Entities[0]
	if e.Properties["document_id"] != "doc" || e.Properties[common.PropEntityDescription] != "Self Attention description" {
		t.Errorf("entity properties = %v", e.Properties)
	}
	r := out[0].Relations[0]
	if r.Source != "Paper" || r.Target != "Self Attention" || r.Label != "mentions" {
		t.Errorf("relation = %+v", r)
	}
	if r.Properties[common.PropRelationDescription] != "mentions Self Attention" {
		t.Errorf("relation properties = %v", r.Properties)
	}
	if _, ok := meta[common.PropEntityDescription]; ok {
		t.Errorf("chunk metadata was modified: %v", meta)
	}
	if !strings.Contains(fake.Completions()[0], "Extract up to 8 triplets") {
		t.Errorf("prompt does not carry the default triplet budget")
	}
}

func TestExtract_FailureIsolation(t *testing.T) {
	var failures atomic.Int32
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, "text: broken"):
				return "", errors.New("upstream unavailable")
			case strings.Contains(prompt, "text: garbage"):
				return "not json at all", nil
			default:
				return chunkResponse("Fine"), nil
			}
		},
	}
	client := NewGraphClient(NewGraphClientParams{
		AIClient:       fake,
		OnChunkFailure: func() { failures.Add(1) },
	})

	out, err := client.Extract(context.Background(), []common.Chunk{
		{ID: "a", Text: "broken"},
		{ID: "b", Text: "garbage"},
		{ID: "c", Text: "fine"},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(out[0].Entities) != 0 || len(out[1].Entities) != 0 {
		t.Errorf("failed chunks should contribute nothing: %+v %+v", out[0], out[1])
	}
	if len(out[2].Entities) != 2 || len(out[2].Relations) != 1 {
		t.Errorf("healthy chunk lost its triplets: %+v", out[2])
	}
	if failures.Load() != 1 {
		t.Errorf("OnChunkFailure called %d times, want 1", failures.Load())
	}
}

func TestExtract_StrictSchemaDropsUnknownLabels(t *testing.T) {
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return aitest.MustJSON(map[string]any{
				"entities": []map[string]string{
					{"entity_name": "P", "entity_type": "Paper"},
					{"entity_name": "C", "entity_type": "Concept"},
				},
				"relationships": []map[string]string{
					{"source_entity": "P", "target_entity": "C", "relation": "mentions"},
					{"source_entity": "P", "target_entity": "C", "relation": "Is About"},
				},
			}), nil
		},
	}
	client := NewGraphClient(NewGraphClientParams{AIClient: fake, StrictSchema: true})

	out, err := client.Extract(context.Background(), []common.Chunk{{ID: "a", Text: "x"}}, WithMaxTriplets(3))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(out[0].Relations) != 1 || out[0].Relations[0].Label != "mentions" {
		t.Errorf("relations = %+v", out[0].Relations)
	}
	if !strings.Contains(fake.Completions()[0], "Extract up to 3 triplets") {
		t.Errorf("WithMaxTriplets was not applied")
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	fake := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			return chunkResponse("X"), nil
		},
	}
	client := NewGraphClient(NewGraphClientParams{AIClient: fake})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Extract(ctx, []common.Chunk{{ID: "a", Text: "x"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
}
