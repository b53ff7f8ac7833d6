// Package tagger derives research tags for a paper by summarizing its chunks,
// merging the summaries and asking for tags on the merged summary.
package tagger

import (
	"context"
	"fmt"
	"strings"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
	"github.com/scilab-ai/scilab/backend/pkg/common"
	"github.com/scilab-ai/scilab/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 2

// Result holds the paper summary and the new tags. Both are empty when
// tagging failed.
type Result struct {
	Summary string
	Tags    []string
}

type tagResponse struct {
	Tags []string `json:"tags" jsonschema_description:"Research tags for the paper"`
}

type AutoTagger struct {
	aiClient ai.GraphAIClient
	workers  int
}

type NewAutoTaggerParams struct {
	AIClient ai.GraphAIClient
	Workers  int // defaults to DefaultWorkers
}

func NewAutoTagger(params NewAutoTaggerParams) *AutoTagger {
	if params.Workers <= 0 {
		params.Workers = DefaultWorkers
	}
	return &AutoTagger{aiClient: params.AIClient, workers: params.Workers}
}

// Tag returns tags for the paper made of chunks that are not already covered
// by existing. It never fails; problems are logged and yield an empty Result.
func (t *AutoTagger) Tag(ctx context.Context, chunks []common.Chunk, existing []string) Result {
	if len(chunks) == 0 {
		logger.Warn("[Tagger] No chunks provided for tagging")
		return Result{}
	}

	summaries, err := t.summarizeChunks(ctx, chunks)
	if err != nil {
		logger.Error("[Tagger] Tagging aborted", "err", err)
		return Result{}
	}

	summary := t.globalSummary(ctx, summaries)
	logger.Debug("[Tagger] Generated global summary", "chars", len(summary))

	tags := t.generateTags(ctx, summary, existing)
	logger.Debug("[Tagger] Generated tags", "count", len(tags))

	tags = RemoveDuplicateTags(tags, existing)
	logger.Info("[Tagger] Final tag count after deduplication", "count", len(tags))

	return Result{Summary: summary, Tags: tags}
}

// summarizeChunks runs one summary per chunk on a bounded pool. A failed
// chunk yields an empty summary; only cancellation is an error.
func (t *AutoTagger) summarizeChunks(ctx context.Context, chunks []common.Chunk) ([]string, error) {
	out := make([]string, len(chunks))

	var eg errgroup.Group
	eg.SetLimit(t.workers)
	for i := range chunks {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			res, err := t.aiClient.GenerateCompletion(ctx, fmt.Sprintf(ai.ChunkSummaryPrompt, chunks[i].Text))
			if err != nil {
				logger.Error("[Tagger] Error summarizing chunk", "chunk", chunks[i].ID, "err", err)
				return nil
			}
			out[i] = strings.TrimSpace(res)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *AutoTagger) globalSummary(ctx context.Context, summaries []string) string {
	valid := make([]string, 0, len(summaries))
	for _, s := range summaries {
		if strings.TrimSpace(s) != "" {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		logger.Warn("[Tagger] No valid chunk summaries found")
		return ""
	}

	res, err := t.aiClient.GenerateCompletion(ctx, fmt.Sprintf(ai.GlobalSummaryPrompt, strings.Join(valid, "\n\n")))
	if err != nil {
		logger.Error("[Tagger] Error creating global summary", "err", err)
		return ""
	}
	return strings.TrimSpace(res)
}

func (t *AutoTagger) generateTags(ctx context.Context, summary string, existing []string) []string {
	if strings.TrimSpace(summary) == "" {
		logger.Warn("[Tagger] Empty summary provided for tag generation")
		return nil
	}

	existingStr := "None"
	if len(existing) > 0 {
		existingStr = strings.Join(existing, ", ")
	}

	var res tagResponse
	err := t.aiClient.GenerateCompletionWithFormat(
		ctx,
		"paper_tags",
		"Research tags for a scientific paper",
		fmt.Sprintf(ai.TagFromSummaryPrompt, existingStr, summary),
		&res,
	)
	if err != nil {
		logger.Error("[Tagger] Error generating tags", "err", err)
		return nil
	}

	tags := make([]string, 0, len(res.Tags))
	for _, tag := range res.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// RemoveDuplicateTags drops tags that repeat an earlier tag or an existing
// one, ignoring case, a plural "s" and hyphen, underscore or space variants.
func RemoveDuplicateTags(tags, existing []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(tags))
	for _, tag := range existing {
		seen[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		norm := strings.ToLower(tag)
		if _, ok := seen[norm]; ok {
			continue
		}
		if isVariant(norm, seen) {
			logger.Debug("[Tagger] Skipping semantic duplicate", "tag", tag)
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func isVariant(tag string, seen map[string]struct{}) bool {
	has := func(s string) bool {
		_, ok := seen[s]
		return ok
	}
	if strings.HasSuffix(tag, "s") && has(strings.TrimSuffix(tag, "s")) {
		return true
	}
	if has(tag + "s") {
		return true
	}
	for _, v := range []string{
		strings.ReplaceAll(tag, "-", " "),
		strings.ReplaceAll(tag, " ", "-"),
		strings.ReplaceAll(tag, "_", " "),
		strings.ReplaceAll(tag, " ", "_"),
	} {
		if has(v) {
			return true
		}
	}
	return false
}
