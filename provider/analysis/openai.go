package analysis

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAIOptions configure the OpenAI backend.
type OpenAIOptions struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// OpenAIBackend completes prompts via the OpenAI Chat Completions API.
type OpenAIBackend struct {
	client *openai.Client
	opts   OpenAIOptions
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates the backend using the official client, which
// reads OPENAI_API_KEY from the environment.
func NewOpenAIBackend(optFns ...func(o *OpenAIOptions)) *OpenAIBackend {
	client := openai.NewClient()
	return NewOpenAIBackendFromClient(&client, optFns...)
}

// NewOpenAIBackendFromClient creates the backend from an existing client.
func NewOpenAIBackendFromClient(client *openai.Client, optFns ...func(o *OpenAIOptions)) *OpenAIBackend {
	opts := OpenAIOptions{
		Model:               openai.ChatModelGPT4TurboPreview,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &OpenAIBackend{client: client, opts: opts}
}

// Name identifies the backend for diagnostics.
func (b *OpenAIBackend) Name() string { return "openai:" + b.opts.Model }

// Complete runs one non-streaming chat completion.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemDirective),
			openai.UserMessage(prompt),
		},
		Model:               b.opts.Model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}
