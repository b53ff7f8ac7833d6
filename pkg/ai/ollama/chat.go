package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/scilab-ai/scilab/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
)

// ollama silently truncates prompts beyond num_ctx, which defaults to 4096
const defaultContextWindow = 4096

func (c *GraphOllamaClient) defaults() ai.GenerateOptions {
	return ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func toOllamaMessages(system []string, messages []ai.ChatMessage) []api.Message {
	msgs := make([]api.Message, 0, len(system)+len(messages))
	for _, sys := range system {
		msgs = append(msgs, api.Message{Role: ai.RoleSystem, Content: sys})
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = ai.RoleUser
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Message})
	}
	return msgs
}

func requestOptions(options ai.GenerateOptions, msgs []api.Message) (map[string]any, error) {
	opts := map[string]any{"temperature": options.Temperature}
	if options.MaxTokens > 0 {
		opts["num_predict"] = options.MaxTokens
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return nil, err
	}
	tokens := 200 + options.MaxTokens
	for _, m := range msgs {
		tokens += len(enc.Encode(m.Content, nil, nil))
	}
	if tokens > defaultContextWindow {
		opts["num_ctx"] = tokens
	}
	return opts, nil
}

// chat runs a non-streaming chat request and records its usage.
func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	stream := false
	req.Stream = &stream

	var final api.ChatResponse
	if err := c.Client.Chat(rCtx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.Record(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Message.Content, nil
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	return c.GenerateChat(ctx, []ai.ChatMessage{ai.UserMessage(prompt)}, opts...)
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.SchemaOf(out))
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(c.defaults(), opts...)
	msgs := toOllamaMessages(options.SystemPrompts, []ai.ChatMessage{ai.UserMessage(prompt)})
	reqOpts, err := requestOptions(options, msgs)
	if err != nil {
		return err
	}

	content, err := c.chat(ctx, &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Format:   json.RawMessage(formatBytes),
		Options:  reqOpts,
	})
	if err != nil {
		return err
	}
	return ai.DecodeLenient(content, out)
}

// GenerateChat sends a multi-turn conversation and returns assistant text.
func (c *GraphOllamaClient) GenerateChat(
	ctx context.Context,
	messages []ai.ChatMessage,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(c.defaults(), opts...)
	msgs := toOllamaMessages(options.SystemPrompts, messages)
	reqOpts, err := requestOptions(options, msgs)
	if err != nil {
		return "", err
	}

	return c.chat(ctx, &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Options:  reqOpts,
	})
}
