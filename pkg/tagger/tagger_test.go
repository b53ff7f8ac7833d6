package tagger

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/scilab-ai/scilab/backend/pkg/ai/aitest"
	"github.com/scilab-ai/scilab/backend/pkg/common"
)

func TestRemoveDuplicateTags(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		existing []string
		want     []string
	}{
		{
			name: "case insensitive",
			tags: []string{"Graph Learning", "graph learning", " Computer Vision "},
			want: []string{"Graph Learning", "Computer Vision"},
		},
		{
			name:     "against existing",
			tags:     []string{"Computer Vision", "Transformers"},
			existing: []string{"computer vision"},
			want:     []string{"Transformers"},
		},
		{
			name:     "plural and singular",
			tags:     []string{"Neural Networks", "Language Model"},
			existing: []string{"Neural Network", "Language Models"},
			want:     nil,
		},
		{
			name:     "separator variants",
			tags:     []string{"self-supervised learning", "graph_neural networks", "Zero Shot"},
			existing: []string{"self supervised learning", "graph neural networks"},
			want:     []string{"Zero Shot"},
		},
		{
			name: "blank tags dropped",
			tags: []string{"", "  ", "Ok Tag"},
			want: []string{"Ok Tag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveDuplicateTags(tt.tags, tt.existing)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RemoveDuplicateTags() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTag_Pipeline(t *testing.T) {
	client := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) {
			switch {
			case strings.Contains(prompt, "Section summaries:"):
				return "  global summary  ", nil
			case strings.Contains(prompt, "broken chunk"):
				return "", errors.New("timeout")
			default:
				return "chunk summary", nil
			}
		},
		FormatFunc: func(ctx context.Context, prompt string) (string, error) {
			return "```json\n{\"tags\": [\"Graph Learning\", \"Knowledge Graphs\", \"knowledge graph\"]}\n```", nil
		},
	}
	tagger := NewAutoTagger(NewAutoTaggerParams{AIClient: client})

	chunks := []common.Chunk{
		{ID: "a", Text: "first chunk"},
		{ID: "b", Text: "broken chunk"},
		{ID: "c", Text: "third chunk"},
	}
	res := tagger.Tag(context.Background(), chunks, []string{"graph-learning"})

	if res.Summary != "global summary" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if want := []string{"Knowledge Graphs"}; !reflect.DeepEqual(res.Tags, want) {
		t.Errorf("Tags = %v, want %v", res.Tags, want)
	}

	formats := client.Formats()
	if len(formats) != 1 || !strings.Contains(formats[0], "graph-learning") || !strings.Contains(formats[0], "global summary") {
		t.Errorf("tag prompt = %v", formats)
	}
	for _, p := range client.Completions() {
		if strings.Contains(p, "Section summaries:") && strings.Count(p, "chunk summary") != 2 {
			t.Errorf("global summary prompt should hold the two valid summaries:\n%s", p)
		}
	}
}

func TestTag_NoExistingTagsRendersNone(t *testing.T) {
	client := &aitest.FakeClient{
		CompletionFunc: func(ctx context.Context, prompt string) (string, error) { return "summary", nil },
		FormatFunc: func(ctx context.Context, prompt string) (string, error) {
			return `{"tags": []}`, nil
		},
	}
	NewAutoTagger(NewAutoTaggerParams{AIClient: client}).Tag(context.Background(), []common.Chunk{{Text: "x"}}, nil)

	formats := client.Formats()
	if len(formats) != 1 || !strings.Contains(formats[0], "EXISTING TAGS:\nNone\n") {
		t.Errorf("tag prompt = %v", formats)
	}
}

func TestTag_FailuresYieldEmptyResult(t *testing.T) {
	tests := []struct {
		name   string
		client *aitest.FakeClient
	}{
		{
			name: "all chunk summaries fail",
			client: &aitest.FakeClient{
				CompletionFunc: func(ctx context.Context, prompt string) (string, error) { return "", errors.New("down") },
			},
		},
		{
			name: "tag generation fails",
			client: &aitest.FakeClient{
				CompletionFunc: func(ctx context.Context, prompt string) (string, error) { return "ok", nil },
				FormatFunc:     func(ctx context.Context, prompt string) (string, error) { return "not json at all", nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewAutoTagger(NewAutoTaggerParams{AIClient: tt.client}).Tag(context.Background(), []common.Chunk{{Text: "x"}}, nil)
			if len(res.Tags) != 0 {
				t.Errorf("Tags = %v, want none", res.Tags)
			}
		})
	}

	if res := NewAutoTagger(NewAutoTaggerParams{AIClient: &aitest.FakeClient{}}).Tag(context.Background(), nil, nil); !reflect.DeepEqual(res, Result{}) {
		t.Errorf("Tag(nil) = %+v", res)
	}
}
