// Package aitest provides a scriptable ai.GraphAIClient for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/scilab-ai/scilab/backend/pkg/ai"
)

// ChatCall records the messages of a single GenerateChat call, with the
// system prompts from options prepended as system messages.
type ChatCall struct {
	Messages []ai.ChatMessage
}

// System returns the content of the first system message.
func (c ChatCall) System() string {
	for _, m := range c.Messages {
		if m.Role == ai.RoleSystem {
			return m.Message
		}
	}
	return ""
}

// User returns the content of the last user message.
func (c ChatCall) User() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == ai.RoleUser {
			return c.Messages[i].Message
		}
	}
	return ""
}

// FakeClient answers through the configured funcs. A nil func returns an error.
type FakeClient struct {
	ai.MetricsRecorder

	CompletionFunc func(ctx context.Context, prompt string) (string, error)
	ChatFunc       func(ctx context.Context, messages []ai.ChatMessage) (string, error)
	FormatFunc     func(ctx context.Context, prompt string) (string, error)
	EmbedFunc      func(ctx context.Context, input string) ([]float32, error)

	mu          sync.Mutex
	completions []string
	chats       []ChatCall
	formats     []string
}

var _ ai.GraphAIClient = (*FakeClient)(nil)

var errNotConfigured = errors.New("aitest: call not configured")

func (f *FakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.completions = append(f.completions, prompt)
	f.mu.Unlock()

	if f.CompletionFunc == nil {
		return "", errNotConfigured
	}
	return f.CompletionFunc(ctx, prompt)
}

// GenerateCompletionWithFormat decodes the FormatFunc result into out with
// ai.DecodeLenient, like the real adapters do.
func (f *FakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.mu.Lock()
	f.formats = append(f.formats, prompt)
	f.mu.Unlock()

	if f.FormatFunc == nil {
		return errNotConfigured
	}
	res, err := f.FormatFunc(ctx, prompt)
	if err != nil {
		return err
	}
	return ai.DecodeLenient(res, out)
}

func (f *FakeClient) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	all := make([]ai.ChatMessage, 0, len(options.SystemPrompts)+len(messages))
	for _, sp := range options.SystemPrompts {
		all = append(all, ai.SystemMessage(sp))
	}
	all = append(all, messages...)

	f.mu.Lock()
	f.chats = append(f.chats, ChatCall{Messages: all})
	f.mu.Unlock()

	if f.ChatFunc == nil {
		return "", errNotConfigured
	}
	return f.ChatFunc(ctx, all)
}

func (f *FakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.EmbedFunc == nil {
		return nil, errNotConfigured
	}
	return f.EmbedFunc(ctx, string(input))
}

// Completions returns every prompt passed to GenerateCompletion.
func (f *FakeClient) Completions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.completions...)
}

// Chats returns every GenerateChat call in call order.
func (f *FakeClient) Chats() []ChatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatCall(nil), f.chats...)
}

// Formats returns every prompt passed to GenerateCompletionWithFormat.
func (f *FakeClient) Formats() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.formats...)
}

// MustJSON marshals v or panics. Handy for scripting model responses.
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
