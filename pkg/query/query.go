// Package query answers questions from community summaries of the knowledge
// graph.
package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
)

const DefaultTopK = 20

// entityLineRe pulls source and target out of "source -> label -> target"
// lines. Word characters are Unicode letters, marks, digits and underscore.
var entityLineRe = regexp.MustCompile(`(?im)^([\p{L}\p{M}\p{N}_]+(?:\s+[\p{L}\p{M}\p{N}_]+)*)\s*->\s*([\p{L}\p{M}\s]+?)\s*->\s*([\p{L}\p{M}\p{N}_]+(?:\s+[\p{L}\p{M}\p{N}_]+)*)$`)

// CommunityIndex is the read side of the community store used for answering.
type CommunityIndex interface {
	Retrieve(ctx context.Context, query string, topK int) ([]common.RetrievedNode, error)
	EntityCommunities() map[string][]int
	GetCommunitySummaries(ctx context.Context) (map[int]string, error)
}

// Engine answers a question by asking every community touched by the
// retrieved entities and merging the partial answers.
type Engine struct {
	index    CommunityIndex
	aiClient ai.GraphAIClient
	topK     int
}

type NewEngineParams struct {
	Index    CommunityIndex
	AIClient ai.GraphAIClient
	TopK     int // defaults to DefaultTopK
}

func NewEngine(params NewEngineParams) *Engine {
	if params.TopK <= 0 {
		params.TopK = DefaultTopK
	}
	return &Engine{
		index:    params.Index,
		aiClient: params.AIClient,
		topK:     params.TopK,
	}
}

// Answer returns the final answer for question. When no retrieved entity
// belongs to a summarized community the fixed no-data answer is returned
// without calling the model.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	return e.AnswerWithTrace(ctx, question, nil)
}

// AnswerWithTrace is Answer reporting retrieval details to tracer, which may
// be nil.
func (e *Engine) AnswerWithTrace(ctx context.Context, question string, tracer Tracer) (string, error) {
	return e.answer(ctx, question, e.topK, tracer)
}

// AnswerTopK is Answer with a per-call retrieval size.
func (e *Engine) AnswerTopK(ctx context.Context, question string, topK int, tracer Tracer) (string, error) {
	if topK <= 0 {
		topK = e.topK
	}
	return e.answer(ctx, question, topK, tracer)
}

func (e *Engine) answer(ctx context.Context, question string, topK int, tracer Tracer) (string, error) {
	nodes, err := e.index.Retrieve(ctx, question, topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve nodes: %w", err)
	}

	entities := candidateEntities(nodes)
	RecordRetrievedEntities(tracer, entities...)

	membership := e.index.EntityCommunities()
	wanted := make(map[int]struct{})
	for _, name := range entities {
		for _, id := range membership[name] {
			wanted[id] = struct{}{}
		}
	}

	summaries, err := e.index.GetCommunitySummaries(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load community summaries: %w", err)
	}

	ids := make([]int, 0, len(wanted))
	for id := range wanted {
		if _, ok := summaries[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	RecordUsedCommunities(tracer, ids...)

	answers := make([]string, 0, len(ids))
	for _, id := range ids {
		res, err := e.aiClient.GenerateChat(ctx, []ai.ChatMessage{
			ai.SystemMessage(summaries[id]),
			ai.UserMessage(fmt.Sprintf(ai.QueryAnswerPrompt, question)),
		})
		if err != nil {
			return "", fmt.Errorf("failed to answer from community %d: %w", id, err)
		}
		answers = append(answers, ai.StripAssistantPrefix(res))
	}

	logger.Debug("[Query] Collected community answers",
		"entities", len(entities), "communities", len(ids))

	if len(answers) == 0 {
		return ai.NoDataAnswer, nil
	}
	return e.aggregateAnswers(ctx, answers)
}

func (e *Engine) aggregateAnswers(ctx context.Context, answers []string) (string, error) {
	res, err := e.aiClient.GenerateChat(ctx, []ai.ChatMessage{
		ai.SystemMessage(ai.AggregateAnswersPrompt),
		ai.UserMessage(fmt.Sprintf("Intermediate answers: %s", formatList(answers))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to aggregate answers: %w", err)
	}
	return ai.StripAssistantPrefix(res), nil
}

// candidateEntities returns the distinct sources and targets of every
// relation line, in first-seen order.
func candidateEntities(nodes []common.RetrievedNode) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, n := range nodes {
		for _, m := range entityLineRe.FindAllStringSubmatch(n.Text, -1) {
			add(m[1])
			add(m[3])
		}
	}
	return out
}

func formatList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
