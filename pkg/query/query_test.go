package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/ai/aitest"
	"github.com/scilab-ai/scilab/backend/pkg/common"
)

type fakeIndex struct {
	nodes      []common.RetrievedNode
	membership map[string][]int
	summaries  map[int]string
	err        error
}

func (f *fakeIndex) Retrieve(ctx context.Context, query string, topK int) ([]common.RetrievedNode, error) {
	return f.nodes, f.err
}

func (f *fakeIndex) EntityCommunities() map[string][]int {
	return f.membership
}

func (f *fakeIndex) GetCommunitySummaries(ctx context.Context) (map[int]string, error) {
	return f.summaries, nil
}

func TestAnswer_FallbackWithoutModelCall(t *testing.T) {
	tests := []struct {
		name  string
		index *fakeIndex
	}{
		{
			name:  "no pattern match",
			index: &fakeIndex{nodes: []common.RetrievedNode{{Text: "just some prose"}}, summaries: map[int]string{0: "s"}},
		},
		{
			name: "entity without community",
			index: &fakeIndex{
				nodes:      []common.RetrievedNode{{Text: "A -> has -> B"}},
				membership: map[string][]int{"C": {0}},
				summaries:  map[int]string{0: "s"},
			},
		},
		{
			name: "community without summary",
			index: &fakeIndex{
				nodes:      []common.RetrievedNode{{Text: "A -> has -> B"}},
				membership: map[string][]int{"A": {3}},
				summaries:  map[int]string{0: "s"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &aitest.FakeClient{}
			e := NewEngine(NewEngineParams{Index: tt.index, AIClient: client})

			got, err := e.Answer(context.Background(), "what?")
			if err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
			if got != ai.NoDataAnswer {
				t.Errorf("Answer() = %q, want fallback", got)
			}
			if n := len(client.Chats()); n != 0 {
				t.Errorf("chat calls = %d, want 0", n)
			}
		})
	}
}

func TestAnswer_AggregatesCommunityAnswers(t *testing.T) {
	index := &fakeIndex{
		nodes: []common.RetrievedNode{
			{Text: "Attention Paper -> mentions -> Transformer\nClaim One -> supported by -> Evidence One"},
		},
		membership: map[string][]int{
			"Attention Paper": {0},
			"Transformer":     {0},
			"Evidence One":    {1},
		},
		summaries: map[int]string{0: "summary zero", 1: "summary one", 2: "unrelated"},
	}
	client := &aitest.FakeClient{
		ChatFunc: func(ctx context.Context, msgs []ai.ChatMessage) (string, error) {
			switch msgs[0].Message {
			case "summary zero":
				return "assistant: X", nil
			case "summary one":
				return "Y", nil
			case ai.AggregateAnswersPrompt:
				return "Assistant:  final answer", nil
			}
			return "", errors.New("unexpected system prompt " + msgs[0].Message)
		},
	}
	e := NewEngine(NewEngineParams{Index: index, AIClient: client})
	trace := NewQueryTrace()

	got, err := e.AnswerWithTrace(context.Background(), "What does the paper claim?", trace)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got != "final answer" {
		t.Errorf("Answer() = %q, want %q", got, "final answer")
	}

	chats := client.Chats()
	if len(chats) != 3 {
		t.Fatalf("chat calls = %d, want 3", len(chats))
	}
	for _, c := range chats[:2] {
		if !strings.Contains(c.User(), "What does the paper claim?") {
			t.Errorf("community prompt missing question: %q", c.User())
		}
	}
	agg := chats[2].User()
	if !strings.HasPrefix(agg, "Intermediate answers: ") || !strings.Contains(agg, `"X"`) || !strings.Contains(agg, `"Y"`) {
		t.Errorf("aggregate input = %q", agg)
	}

	snap := trace.Snapshot()
	if want := []int{0, 1}; !reflect.DeepEqual(snap.Communities, want) {
		t.Errorf("trace communities = %v, want %v", snap.Communities, want)
	}
	if want := []string{"Attention Paper", "Claim One", "Evidence One", "Transformer"}; !reflect.DeepEqual(snap.Entities, want) {
		t.Errorf("trace entities = %v, want %v", snap.Entities, want)
	}
}

func TestAnswer_PropagatesErrors(t *testing.T) {
	e := NewEngine(NewEngineParams{Index: &fakeIndex{err: errors.New("db down")}, AIClient: &aitest.FakeClient{}})
	if _, err := e.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected retrieval error")
	}

	index := &fakeIndex{
		nodes:      []common.RetrievedNode{{Text: "A -> has -> B"}},
		membership: map[string][]int{"A": {0}},
		summaries:  map[int]string{0: "s"},
	}
	e = NewEngine(NewEngineParams{Index: index, AIClient: &aitest.FakeClient{}})
	if _, err := e.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected model error")
	}
}

func TestCandidateEntities(t *testing.T) {
	tests := []struct {
		name  string
		nodes []common.RetrievedNode
		want  []string
	}{
		{
			name: "ascii",
			nodes: []common.RetrievedNode{
				{Text: "A -> has -> B\nB -> related to -> C"},
				{Text: "C -> cites -> A\nnot a relation line"},
			},
			want: []string{"A", "B", "C"},
		},
		{
			name: "unicode names",
			nodes: []common.RetrievedNode{
				{Text: "Müller -> wrote -> Schrödinger Paper\nAlice -> cites -> Bob"},
			},
			want: []string{"Müller", "Schrödinger Paper", "Alice", "Bob"},
		},
		{
			name: "unicode label and digits",
			nodes: []common.RetrievedNode{
				{Text: "Scilab 2024 -> präsentiert -> Xcos_Block"},
			},
			want: []string{"Scilab 2024", "Xcos_Block"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := candidateEntities(tt.nodes); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("candidateEntities() = %v, want %v", got, tt.want)
			}
		})
	}
}
